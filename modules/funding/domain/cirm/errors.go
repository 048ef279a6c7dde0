package cirm

import "github.com/cirm-data/portal/pkg/serrors"

// Import and merge failure taxonomy. Codes are stable machine identifiers; the
// locale keys resolve the single user-facing message.
var (
	ErrUnsupportedFormat = serrors.NewError(
		"UNSUPPORTED_FORMAT",
		"unsupported file format",
		"Funding.Errors.UnsupportedFormat",
	)
	ErrParseFailure = serrors.NewError(
		"PARSE_FAILURE",
		"failed to parse file",
		"Funding.Errors.ParseFailure",
	)
	ErrInvalidStructure = serrors.NewError(
		"INVALID_STRUCTURE",
		"document carries neither grants nor papers",
		"Funding.Errors.InvalidStructure",
	)
	ErrMergeRejected = serrors.NewError(
		"MERGE_REJECTED",
		"no baseline data set exists; import a complete JSON document first",
		"Funding.Errors.MergeRejected",
	)
	ErrNotFound = serrors.NewError(
		"NOT_FOUND",
		"record not found",
		"Funding.Errors.NotFound",
	)
)
