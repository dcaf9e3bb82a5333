package config

const (
	errInvalidConfigurationFmt = "invalid configuration: %w"

	errPortRequiredFmt            = "server port is required"
	errDBPasswordRequiredFmt      = "database password is required"
	errSigningKeysRequiredFmt     = "at least one signing key is required"
	errSigningKeyEntryFmt         = "signing key entry %q is not in kid:secret form"
	errSigningKeyDuplicateFmt     = "duplicate signing key id %q"
	errSigningSecretMinLengthFmt  = "signing key %q secret must be at least %d characters"
	errSigningSecretLowEntropyFmt = "signing key %q secret has insufficient entropy"
	errActiveKeyUnknownFmt        = "active key id %q is not among the configured signing keys"
	errVaultBaseURLRequiredFmt    = "vault base URL is required"
	errMaxUploadSizePositiveFmt   = "max upload size must be positive"
	errPathRuleEntryFmt           = "path rule entry %q is not in pattern=METHOD|METHOD form"
)
