package handler

const (
	paramID     = "id"
	queryHard   = "hard"
	queryLimit  = "limit"
	queryOffset = "offset"

	defaultAuditPageSize = 50
	maxAuditPageSize     = 200

	jsonKeyError   = "error"
	jsonKeyMessage = "message"

	msgInvalidAssetID          = "invalid asset id"
	msgInvalidOwnerType        = "invalid owner type"
	msgAssetNotFound           = "asset not found"
	msgNotOwner                = "caller does not own this asset"
	msgAssetNotAvailable       = "asset has no available data"
	msgAssetDeleted            = "asset deleted"
	msgAssetPurged             = "asset purged"
	msgIssueTokenFail          = "failed to issue token"
	msgContentTypeJSONRequired = "Content-Type must be application/json"
	msgInvalidRequestBody      = "invalid request body"
)
