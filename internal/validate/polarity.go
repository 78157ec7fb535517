package validate

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/tracewell-health/ecg-cli/internal/model"
)

// Polarity is the physiologically expected dominant deflection sign.
type Polarity int

const (
	// PolarityIndeterminate means no expectation is enforced (the V1-V4
	// transition zone, and any lead the profile does not mention).
	PolarityIndeterminate Polarity = iota
	PolarityPositive
	PolarityNegative
)

// defaultPolarities is the compiled-in expectation table. In a normally
// conducted rhythm the lateral and inferior-facing leads deflect positive,
// aVR faces away from the mean axis and deflects negative, and the
// precordial transition zone is deliberately left unconstrained.
var defaultPolarities = map[model.Lead]Polarity{
	model.LeadI:   PolarityPositive,
	model.LeadII:  PolarityPositive,
	model.LeadAVL: PolarityPositive,
	model.LeadV5:  PolarityPositive,
	model.LeadV6:  PolarityPositive,
	model.LeadAVR: PolarityNegative,
	model.LeadV1:  PolarityIndeterminate,
	model.LeadV2:  PolarityIndeterminate,
	model.LeadV3:  PolarityIndeterminate,
	model.LeadV4:  PolarityIndeterminate,
}

// PolarityProfile is the YAML shape of a lead-profile file. Site-specific
// placements (pediatric right-sided sets, posterior leads) can declare their
// own expectations without a rebuild:
//
//	positive: [I, II, V5, V6]
//	negative: [aVR, V4R]
type PolarityProfile struct {
	Positive []string `yaml:"positive"`
	Negative []string `yaml:"negative"`
}

// LoadPolarityProfile reads a YAML lead profile and resolves it against the
// closed lead set. Unknown labels fail the load.
func LoadPolarityProfile(path string) (map[model.Lead]Polarity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "validate: read polarity profile %s", path)
	}
	return parsePolarityProfile(data)
}

func parsePolarityProfile(data []byte) (map[model.Lead]Polarity, error) {
	var prof PolarityProfile
	if err := yaml.Unmarshal(data, &prof); err != nil {
		return nil, eris.Wrap(err, "validate: parse polarity profile")
	}

	table := make(map[model.Lead]Polarity, len(prof.Positive)+len(prof.Negative))
	for _, label := range prof.Positive {
		l, err := model.ParseLead(label)
		if err != nil {
			return nil, err
		}
		table[l] = PolarityPositive
	}
	for _, label := range prof.Negative {
		l, err := model.ParseLead(label)
		if err != nil {
			return nil, err
		}
		if table[l] == PolarityPositive {
			return nil, eris.Errorf("validate: lead %s listed as both positive and negative", l)
		}
		table[l] = PolarityNegative
	}
	return table, nil
}
