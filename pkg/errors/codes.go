package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Module returns the code prefix, e.g. "VOCAB" for "VOCAB_002".
func (c ErrorCode) Module() string {
	s := string(c)
	if i := strings.IndexByte(s, '_'); i > 0 {
		return s[:i]
	}
	return s
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeNotImplemented     ErrorCode = "COMMON_016"
)

// Vocabulary Module Error Codes
const (
	ErrCodeVocabularyEmpty     ErrorCode = "VOCAB_001"
	ErrCodeVocabularyMalformed ErrorCode = "VOCAB_002"
	ErrCodeVocabularyDuplicate ErrorCode = "VOCAB_003"
	ErrCodeVocabularyLoad      ErrorCode = "VOCAB_004"
	ErrCodeEntityNotFound      ErrorCode = "VOCAB_005"
	ErrCodeOverrideInvalid     ErrorCode = "VOCAB_006"
)

// Matching Module Error Codes
const (
	ErrCodeIndexNotLoaded    ErrorCode = "MATCH_001"
	ErrCodeThresholdInvalid  ErrorCode = "MATCH_002"
	ErrCodeBatchCancelled    ErrorCode = "MATCH_003"
	ErrCodeBatchInputInvalid ErrorCode = "MATCH_004"
)

// Infrastructure Error Codes
const (
	ErrCodeMessageQueue ErrorCode = "MQ_001"
	ErrCodeStorage      ErrorCode = "STORAGE_001"
	ErrCodeGraph        ErrorCode = "GRAPH_001"
)

// Aliases used across layers.
const (
	CodeInternal       = ErrCodeInternal
	CodeInvalidParam   = ErrCodeBadRequest
	CodeNotFound       = ErrCodeNotFound
	CodeConflict       = ErrCodeConflict
	CodeNotImplemented = ErrCodeNotImplemented
	CodeOK             = ErrorCode("OK")
	CodeUnknown        = ErrorCode("UNKNOWN")

	CodeDBQueryError      = ErrCodeDatabaseError
	CodeCacheError        = ErrCodeCacheError
	CodeMessageQueueError = ErrCodeMessageQueue
	CodeStorageError      = ErrCodeStorage
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeVocabularyEmpty:     http.StatusInternalServerError,
	ErrCodeVocabularyMalformed: http.StatusInternalServerError,
	ErrCodeVocabularyDuplicate: http.StatusInternalServerError,
	ErrCodeVocabularyLoad:      http.StatusServiceUnavailable,
	ErrCodeEntityNotFound:      http.StatusNotFound,
	ErrCodeOverrideInvalid:     http.StatusInternalServerError,

	ErrCodeIndexNotLoaded:    http.StatusServiceUnavailable,
	ErrCodeThresholdInvalid:  http.StatusBadRequest,
	ErrCodeBatchCancelled:    http.StatusRequestTimeout,
	ErrCodeBatchInputInvalid: http.StatusBadRequest,

	ErrCodeMessageQueue: http.StatusInternalServerError,
	ErrCodeStorage:      http.StatusInternalServerError,
	ErrCodeGraph:        http.StatusInternalServerError,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeNotImplemented:     "not implemented",

	ErrCodeVocabularyEmpty:     "reference vocabulary is empty",
	ErrCodeVocabularyMalformed: "reference vocabulary is malformed",
	ErrCodeVocabularyDuplicate: "reference vocabulary has conflicting duplicate identifiers",
	ErrCodeVocabularyLoad:      "reference vocabulary could not be loaded",
	ErrCodeEntityNotFound:      "reference entity not found",
	ErrCodeOverrideInvalid:     "override table is invalid",

	ErrCodeIndexNotLoaded:    "reference index not loaded",
	ErrCodeThresholdInvalid:  "similarity threshold out of range",
	ErrCodeBatchCancelled:    "batch cancelled",
	ErrCodeBatchInputInvalid: "batch input invalid",

	ErrCodeMessageQueue: "message queue error",
	ErrCodeStorage:      "object storage error",
	ErrCodeGraph:        "graph database error",
}

// HTTPStatus returns the HTTP status for code, 500 when unmapped.
func HTTPStatus(code ErrorCode) int {
	if s, ok := ErrorCodeHTTPStatus[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// DefaultMessage returns the default message for code.
func DefaultMessage(code ErrorCode) string {
	if m, ok := ErrorCodeMessage[code]; ok {
		return m
	}
	return "unknown error"
}
