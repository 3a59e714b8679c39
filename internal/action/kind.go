package action

// Kind is the discriminant string of a Trello action ("type" in the payload).
// The set is open: values not listed below are valid and are narrated by
// the generic fallback.
type Kind string

// Known action kinds.
// List of names: https://developer.atlassian.com/cloud/trello/guides/rest-api/action-types/
const (
	KindAddAttachmentToCard        Kind = "addAttachmentToCard"
	KindAddChecklistToCard         Kind = "addChecklistToCard"
	KindAddMemberToBoard           Kind = "addMemberToBoard"
	KindAddMemberToCard            Kind = "addMemberToCard"
	KindAddToOrganizationBoard     Kind = "addToOrganizationBoard"
	KindCommentCard                Kind = "commentCard"
	KindConvertToCardFromCheckItem Kind = "convertToCardFromCheckItem"
	KindCopyCard                   Kind = "copyCard"
	KindCreateBoard                Kind = "createBoard"
	KindCreateCard                 Kind = "createCard"
	KindCreateList                 Kind = "createList"
	KindDeleteAttachmentFromCard   Kind = "deleteAttachmentFromCard"
	KindDeleteCard                 Kind = "deleteCard"
	KindMakeAdminOfBoard           Kind = "makeAdminOfBoard"
	KindMakeNormalMemberOfBoard    Kind = "makeNormalMemberOfBoard"
	KindMoveCardFromBoard          Kind = "moveCardFromBoard"
	KindMoveCardToBoard            Kind = "moveCardToBoard"
	KindMoveListFromBoard          Kind = "moveListFromBoard"
	KindMoveListToBoard            Kind = "moveListToBoard"
	KindRemoveChecklistFromCard    Kind = "removeChecklistFromCard"
	KindRemoveMemberFromCard       Kind = "removeMemberFromCard"
	KindUnconfirmedBoardInvitation Kind = "unconfirmedBoardInvitation"
	KindUpdateBoard                Kind = "updateBoard"
	KindUpdateCard                 Kind = "updateCard"
	KindUpdateCheckItemStateOnCard Kind = "updateCheckItemStateOnCard"
	KindUpdateChecklist            Kind = "updateChecklist"
)

// KnownKinds lists every kind with a dedicated variant, in alphabetical order.
var KnownKinds = []Kind{
	KindAddAttachmentToCard,
	KindAddChecklistToCard,
	KindAddMemberToBoard,
	KindAddMemberToCard,
	KindAddToOrganizationBoard,
	KindCommentCard,
	KindConvertToCardFromCheckItem,
	KindCopyCard,
	KindCreateBoard,
	KindCreateCard,
	KindCreateList,
	KindDeleteAttachmentFromCard,
	KindDeleteCard,
	KindMakeAdminOfBoard,
	KindMakeNormalMemberOfBoard,
	KindMoveCardFromBoard,
	KindMoveCardToBoard,
	KindMoveListFromBoard,
	KindMoveListToBoard,
	KindRemoveChecklistFromCard,
	KindRemoveMemberFromCard,
	KindUnconfirmedBoardInvitation,
	KindUpdateBoard,
	KindUpdateCard,
	KindUpdateCheckItemStateOnCard,
	KindUpdateChecklist,
}

// IsKnown reports whether k has a dedicated variant.
func (k Kind) IsKnown() bool {
	_, ok := decoders[k]
	return ok
}
