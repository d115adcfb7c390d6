package indexing

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"regexp"

	"github.com/shopspring/decimal"

	catalog "stats-indexer/internal/catalog/domain"
)

// FormattedRecord is a statistic ready for indexing: the source row's columns,
// the amount converted into the base currency, a deterministic id and a
// snapshot of the statistic's program.
type FormattedRecord struct {
	ID            string
	ProgramID     catalog.ProgramID
	SDate         string
	TotalAmount   decimal.Decimal
	Program       catalog.Program
	RootProgramID catalog.ProgramID
	Attributes    map[string]any
}

// Fingerprint derives a record id from (program_id, sdate): the hex MD5 of their
// concatenation, with the program id as the source renders it. Documents indexed
// by earlier deployments carry the same ids, so re-indexing overwrites instead
// of duplicating.
func Fingerprint(programKey, sdate string) string {
	sum := md5.Sum([]byte(programKey + sdate))
	return hex.EncodeToString(sum[:])
}

var integerPattern = regexp.MustCompile(`^-?[0-9]+$`)

// MarshalJSON renders the document body. Source columns come first; the named
// fields override any column of the same name.
func (r FormattedRecord) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(r.Attributes)+6)
	for k, v := range r.Attributes {
		doc[k] = v
	}
	doc["id"] = r.ID
	doc["program_id"] = idValue(r.ProgramID)
	doc["sdate"] = r.SDate
	doc["totalamt"] = json.Number(r.TotalAmount.String())
	doc["program"] = programDocument(r.Program)
	if !r.RootProgramID.IsZero() {
		doc["root_program_id"] = idValue(r.RootProgramID)
	}
	return json.Marshal(doc)
}

func programDocument(p catalog.Program) map[string]any {
	doc := make(map[string]any, len(p.Attributes)+3)
	for k, v := range p.Attributes {
		doc[k] = v
	}
	doc["program_id"] = idValue(p.ID)
	if p.HasParent() {
		doc["parent_id"] = idValue(p.ParentID)
	} else {
		doc["parent_id"] = nil
	}
	doc["currency"] = p.Currency
	return doc
}

// idValue keeps integer ids numeric in documents, as the relational source has them.
func idValue(id catalog.ProgramID) any {
	if integerPattern.MatchString(string(id)) {
		return json.Number(id)
	}
	return string(id)
}
