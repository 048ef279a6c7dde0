package cirm

import "encoding/json"

// ParseDocument decodes a structured JSON upload as a full or partial data
// set. A syntax error is a parse failure; a document carrying neither a grants
// nor a papers section is structurally invalid. Presence is what counts: an
// explicit empty array satisfies the check, an absent field does not.
func ParseDocument(raw []byte) (*Data, error) {
	var doc Data
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, ErrParseFailure.WithDetail(err.Error())
	}
	if doc.Grants == nil && doc.Papers == nil {
		return nil, ErrInvalidStructure
	}
	return &doc, nil
}

// DocumentPartial wraps a parsed document for the merge. The arrays feed the
// normal merge path; the document itself can establish the baseline when no
// data set exists yet.
func DocumentPartial(doc *Data) *Partial {
	doc.Normalize()
	return &Partial{
		Grants:       doc.Grants,
		ActiveGrants: doc.ActiveGrants,
		Papers:       doc.Papers,
		Baseline:     doc,
	}
}
