package errors

var (
	// Exchange errors — used by the transaction coordinator.
	ErrBookNotFound        = NotFound("book not found")
	ErrOwnBookRequest      = FailedPrecondition("you cannot request your own book")
	ErrBookNotApproved     = FailedPrecondition("book is not yet approved by admin")
	ErrBookUnavailable     = FailedPrecondition("book is currently unavailable")
	ErrRequestPending      = FailedPrecondition("you already have a pending request for this book")
	ErrTransactionNotFound = NotFound("transaction not found")
	ErrNotRequestReceiver  = Forbidden("only the book owner can accept this request")
	ErrRequestNotPending   = FailedPrecondition("only pending requests can be accepted")

	// Chat errors — used by the registry, ledger and gateway.
	ErrSelfChat             = FailedPrecondition("cannot start a chat with yourself")
	ErrConversationNotFound = NotFound("conversation not found")
	ErrNotParticipant       = Forbidden("not a participant in this conversation")
	ErrEmptyMessage         = FailedPrecondition("either text or attachments required")
	ErrUserNotFound         = NotFound("user not found")
)
