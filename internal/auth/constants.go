package auth

const (
	ContextKeyPrincipal = "auth_principal"

	jsonKeyError = "error"

	headerAuthorization = "Authorization"
	headerContentLength = "Content-Length"
	headerContentType   = "Content-Type"

	bearerScheme    = "bearer"
	authHeaderParts = 2
)

const (
	msgPrincipalNotFound     = "principal not found in context"
	msgIdentityRequired      = "identity principal required"
	msgEmptyBearerToken      = "empty bearer token"
	msgMissingIdentityID     = "token payload carries no identity"
	msgMethodNotPermitted    = "method not permitted by token"
	msgPathNotPermitted      = "path not permitted by token"
	msgContentLengthRequired = "Content-Length required on size-restricted route"
	msgContentLengthInvalid  = "Content-Length is not a valid size"
	msgBodyTooLarge          = "request body exceeds permitted size"
	msgContentTypeRequired   = "Content-Type required on content-restricted route"
	msgContentTypeInvalid    = "Content-Type could not be parsed"
	msgContentTypeDenied     = "content type not permitted by token"
)
