package authority

type Request struct {
	Operation string      `json:"operation,omitempty"`
	Arguments interface{} `json:"arguments,omitempty"`
}

type ReplyStatus int

const (
	ReplyStatusOK ReplyStatus = iota
	ReplyStatusAbort
	ReplyStatusError
)

type Reply struct {
	Status ReplyStatus `json:"status,omitempty"`
	Result interface{} `json:"result,omitempty"`
}

type AbortResult struct {
	Reason  string      `json:"reason,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

type ErrorDetails struct {
	Message string `json:"message,omitempty"`
}

type AuthorizeArguments struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthorizeResult struct {
	UserID    int32  `json:"uid"`
	Name      string `json:"name,omitempty"`
	ContactID int32  `json:"partner_id,omitempty"`
}

// Abort reasons
const (
	ReasonDenied               = "ERR_ACCESS_DENIED"
	ReasonTechnicalException   = "ERR_TECHNICAL_EXCEPTION"
	ReasonUnsupportedOperation = "ERR_UNSUPPORTED_OPERATION"
)

// OperationAuthorize is the only operation served by the authority.
const OperationAuthorize = "authorize"
