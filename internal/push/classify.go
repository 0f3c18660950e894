package push

// Provider error codes. Providers translate their native errors into these.
const (
	CodeUnregistered     = "registration-token-not-registered"
	CodeInvalidToken     = "invalid-registration-token"
	CodeInvalidArgument  = "invalid-argument"
	CodeSenderIDMismatch = "sender-id-mismatch"
	CodeQuotaExceeded    = "quota-exceeded"
	CodeUnavailable      = "unavailable"
	CodeInternal         = "internal"
	CodeThirdPartyAuth   = "third-party-auth-error"
	CodeTimeout          = "timeout"
	CodeUnknown          = "unknown"
)

type Classification struct {
	Retryable    bool
	InvalidToken bool
}

var errorClassification = map[string]Classification{
	CodeUnregistered:     {InvalidToken: true},
	CodeInvalidToken:     {InvalidToken: true},
	CodeInvalidArgument:  {},
	CodeSenderIDMismatch: {},
	CodeQuotaExceeded:    {Retryable: true},
	CodeUnavailable:      {Retryable: true},
	CodeInternal:         {Retryable: true},
	CodeThirdPartyAuth:   {},
	CodeTimeout:          {Retryable: true},
	CodeUnknown:          {},
}

// Classify maps a provider error code to its handling. Unknown codes are
// neither retryable nor token-invalidating.
func Classify(code string) Classification {
	return errorClassification[code]
}
