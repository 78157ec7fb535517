package model

import (
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Lead identifies one ECG measurement channel. The set is closed: the 12
// standard leads plus the extended placements V3R, V4R and V7. Anything read
// from an external boundary (AI output, signal files, HTTP requests) must go
// through ParseLead before being used as a map key.
type Lead string

const (
	LeadI   Lead = "I"
	LeadII  Lead = "II"
	LeadIII Lead = "III"
	LeadAVR Lead = "aVR"
	LeadAVL Lead = "aVL"
	LeadAVF Lead = "aVF"
	LeadV1  Lead = "V1"
	LeadV2  Lead = "V2"
	LeadV3  Lead = "V3"
	LeadV4  Lead = "V4"
	LeadV5  Lead = "V5"
	LeadV6  Lead = "V6"
	LeadV3R Lead = "V3R"
	LeadV4R Lead = "V4R"
	LeadV7  Lead = "V7"
)

// AllLeads lists every recognized lead in conventional display order.
var AllLeads = []Lead{
	LeadI, LeadII, LeadIII,
	LeadAVR, LeadAVL, LeadAVF,
	LeadV1, LeadV2, LeadV3, LeadV4, LeadV5, LeadV6,
	LeadV3R, LeadV4R, LeadV7,
}

// LimbLeads are the six leads bound together by the Einthoven and Goldberger
// identities. Precordial leads carry no such redundancy.
var LimbLeads = []Lead{LeadI, LeadII, LeadIII, LeadAVR, LeadAVL, LeadAVF}

// StandardLeadCount is the size of a complete 12-lead recording, used as the
// denominator for lead-coverage scoring.
const StandardLeadCount = 12

var leadSet = func() map[Lead]bool {
	s := make(map[Lead]bool, len(AllLeads))
	for _, l := range AllLeads {
		s[l] = true
	}
	return s
}()

// canonical maps uppercase spellings to their Lead. OCR and LLM output use
// inconsistent casing ("AVR", "avl", "Lead II"), so matching is done on a
// normalized uppercase form.
var canonical = func() map[string]Lead {
	m := make(map[string]Lead, len(AllLeads))
	for _, l := range AllLeads {
		m[strings.ToUpper(string(l))] = l
	}
	return m
}()

// labelNormalizer strips diacritics and non-spacing marks that show up in
// OCR output of printed lead labels.
var labelNormalizer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// IsValidLead reports whether l is a member of the closed lead set.
func IsValidLead(l Lead) bool {
	return leadSet[l]
}

// ParseLead resolves an externally supplied lead label to a Lead. It tolerates
// casing, surrounding whitespace, a "Lead " prefix, and unicode damage from
// OCR. Unknown labels are an error, never passed through.
func ParseLead(s string) (Lead, error) {
	cleaned, _, err := transform.String(labelNormalizer, s)
	if err != nil {
		cleaned = s
	}
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.TrimPrefix(strings.TrimPrefix(cleaned, "Lead "), "lead ")
	cleaned = strings.ToUpper(strings.TrimSpace(cleaned))

	if l, ok := canonical[cleaned]; ok {
		return l, nil
	}
	return "", eris.Errorf("model: unknown lead label %q", s)
}

// IsLimb reports whether l participates in the limb-lead algebra.
func (l Lead) IsLimb() bool {
	for _, limb := range LimbLeads {
		if l == limb {
			return true
		}
	}
	return false
}

// IsPrecordial reports whether l is a chest lead (V1-V7 and right-sided
// placements). Precordial leads are never recoverable from other leads.
func (l Lead) IsPrecordial() bool {
	return leadSet[l] && !l.IsLimb()
}
