package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: Configuration errors
// 12000-12999: Template & toolchain errors
// 13000-13999: Statement errors
// 14000-14999: Build & staging errors
// 15000-15999: Publishing errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalError ErrorCode = 10001
	InvalidParams ErrorCode = 10002
	Canceled      ErrorCode = 10003

	// ========== Configuration Errors (11000-11999) ==========

	// Discovery (11000-11099)
	ConfigNotFound      ErrorCode = 11000
	ConfigVersionTooOld ErrorCode = 11001

	// Loading (11100-11199)
	ConfigParseError ErrorCode = 11100
	ConfigIOError    ErrorCode = 11101

	// Selection (11200-11299)
	DayNotFound ErrorCode = 11200

	// ========== Template & Toolchain Errors (12000-12999) ==========

	// Template (12000-12099)
	TemplateNotFound            ErrorCode = 12000
	TemplateMissingRequiredFile ErrorCode = 12001
	TemplateInvalid             ErrorCode = 12002

	// Toolchain (12100-12199)
	ToolchainUnavailable ErrorCode = 12100

	// ========== Statement Errors (13000-13999) ==========

	StatementMissing    ErrorCode = 13000
	StatementParseError ErrorCode = 13001

	// ========== Build & Staging Errors (14000-14999) ==========

	CompileFailure  ErrorCode = 14000
	FilesystemError ErrorCode = 14100

	// ========== Publishing Errors (15000-15999) ==========

	PublishFailed ErrorCode = 15000
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:       "Success",
	InternalError: "Internal error",
	InvalidParams: "Invalid parameters",
	Canceled:      "Operation canceled",

	// Configuration
	ConfigNotFound:      "Contest configuration not found",
	ConfigVersionTooOld: "Configuration version is too old, migrate to the current format first",
	ConfigParseError:    "Malformed configuration file",
	ConfigIOError:       "Failed to read configuration file",
	DayNotFound:         "Contest day not found",

	// Template & Toolchain
	TemplateNotFound:            "Template not found",
	TemplateMissingRequiredFile: "Template is missing a required file",
	TemplateInvalid:             "Template archive is invalid",
	ToolchainUnavailable:        "Typst compiler is not available",

	// Statement
	StatementMissing:    "Problem statement file not found",
	StatementParseError: "Failed to parse statement",

	// Build & Staging
	CompileFailure:  "Compilation failed",
	FilesystemError: "Filesystem operation failed",

	// Publishing
	PublishFailed: "Failed to publish artifact",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// ExitCode returns the recommended process exit status for the error code
func (c ErrorCode) ExitCode() int {
	switch {
	case c == Success:
		return 0
	case c == InvalidParams:
		return 2
	case c >= 11000 && c < 12000: // Configuration errors
		return 3
	case c >= 12000 && c < 13000: // Template & toolchain errors
		return 4
	case c >= 13000 && c < 15000: // Statement & build errors
		return 5
	case c >= 15000 && c < 16000: // Publishing errors
		return 6
	case c == Canceled:
		return 130
	default:
		return 1
	}
}
