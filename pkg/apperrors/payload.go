package apperrors

// FieldError is one localized validation message, matching the
// `{field, tag, message[]}` shape from spec.md §7.
type FieldError struct {
	Field   string   `json:"field"`
	Tag     string   `json:"tag"`
	Message []string `json:"message"`
}

// ValidationPayload is the user-visible shape for a failed build, ready for
// the (out-of-scope) HTTP layer to serialize. extension carries kind-specific
// detail, e.g. DimensionNonMatchedRows' non-matching sample.
type ValidationPayload struct {
	Status    int             `json:"status"`
	DatasetID string          `json:"dataset_id"`
	Errors    []FieldError    `json:"errors"`
	Extension map[string]any  `json:"extension,omitempty"`
}

// NonMatchingExtension builds the extension bag for a DimensionNonMatchedRows
// failure: total row count plus a bounded sample of the offending values.
func NonMatchingExtension(totalNonMatching int64, sample []string) map[string]any {
	return map[string]any{
		"total_non_matching":  totalNonMatching,
		"non_matching_values": sample,
	}
}

// HTTPStatus maps a Kind to the status code the (out-of-scope) HTTP layer
// should use: validation-shaped kinds are 400, everything else is 500.
func HTTPStatus(kind Kind) int {
	switch kind {
	case NoFirstRevision, NoDataTable, UnknownFileType, DuplicateFact, IncompleteFact,
		FactColumnMissing, UnmatchedColumns, DimensionNonMatched, MeasureNonMatched,
		NoNoteCodes, BadNoteCodes, NoDataValueColumn, NonNumericDataValue,
		NoJoinColumn, InvalidCSV:
		return 400
	default:
		return 500
	}
}

// Payload renders a BuildError (plus per-language messages) into the
// wire shape a caller would serialize.
func (e *BuildError) Payload(messages []string) *ValidationPayload {
	p := &ValidationPayload{
		Status:    HTTPStatus(e.Kind),
		DatasetID: e.DatasetID,
		Errors: []FieldError{
			{Field: e.Field, Tag: string(e.Kind), Message: messages},
		},
	}
	return p
}
