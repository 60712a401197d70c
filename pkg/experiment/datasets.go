package experiment

import (
	"errors"
	"fmt"
	"strings"

	cferrors "github.com/logflow/conformflow/pkg/errors"
)

// ErrUnknownDataset is returned for a dataset with no formula tiers.
var ErrUnknownDataset = errors.New("experiment: unknown dataset")

// Tier is an LTLf model covering a share of the log's behaviour.
type Tier struct {
	Name    string
	Formula string
}

// Dataset is one benchmark log with its prefix lengths and formula tiers.
type Dataset struct {
	Name          string
	PrefixLengths []int
	Tiers         []Tier

	// family matches variants of the same log by substring.
	family string
}

var datasets = []Dataset{
	{
		Name:          "synthetic_data",
		PrefixLengths: []int{7, 9, 11, 13},
		family:        "synthetic_data",
		Tiers: []Tier{
			{"10%", "G(contacthospital -> X(acceptclaim | rejectclaim))"},
			{"25%", "G(contacthospital -> X(acceptclaim | rejectclaim)) & F(createquestionnaire)"},
			{"50%", "(F(contacthospital) -> F(highinsurancecheck)) & " +
				"G(preparenotificationcontent -> X(sendnotificationbyphone | sendnotificationbypost)) & " +
				"G(createquestionnaire -> F(preparenotificationcontent)) & register"},
		},
	},
	{
		Name:          "bpic2012_O_ACCEPTED-COMPLETE",
		PrefixLengths: []int{20, 25, 30, 35},
		family:        "bpic2012",
		Tiers: []Tier{
			{"10%", "F(osentcomplete) & G(osentcomplete -> (!(aacceptedcomplete) U (wcompleterenaanvraagcomplete))) & " +
				"F(osentbackcomplete)"},
			{"25%", "F(osentcomplete) & G(osentcomplete -> (!(aacceptedcomplete) U (wcompleterenaanvraagcomplete))) & " +
				"F(osentbackcomplete) & G(wcompleterenaanvraagstart -> F(aacceptedcomplete)) & " +
				"(F(wnabellenoffertesstart) & F(wnabellenoffertescomplete)) & " +
				"(F(oselectedcomplete) | F(wvaliderenaanvraagstart))"},
			{"50%", "F(osentcomplete) & G(osentcomplete -> (!(aacceptedcomplete) U (wcompleterenaanvraagcomplete))) & " +
				"G(wcompleterenaanvraagschedule -> F(wcompleterenaanvraagstart)) & " +
				"(F(wnabellenoffertesstart) | F(wnabellenoffertescomplete)) & " +
				"(F(oselectedcomplete) | F(wvaliderenaanvraagstart)) & asubmittedcomplete & " +
				"F(oselectedcomplete | apartlysubmittedcomplete) & G(ocreatedcomplete -> F(osentbackcomplete)) & " +
				"F(afinalizedcomplete) | F(apreacceptedcomplete) | F(wafhandelenleadscomplete)"},
		},
	},
	{
		Name:          "BPIC17_O_ACCEPTED",
		PrefixLengths: []int{15, 20, 25, 30},
		family:        "BPIC17",
		Tiers: []Tier{
			{"10%", "acreateapplication & (!(aconcept) U (wcompleteapplication))"},
			{"25%", "acreateapplication & (!(aconcept) U (wcompleteapplication)) & " +
				"(F(ocreateoffer) -> F(wcallafteroffers)) & F(wcompleteapplication)"},
			{"50%", "acreateapplication & (!(aconcept) U (wcompleteapplication)) & " +
				"(G(ocreateoffer) -> (F(wcallafteroffers) | F(wvalidateapplication))) & " +
				"(F(ocreated) -> X(osentmailandonline | osentonlineonly)) & " +
				"G((aincomplete | apending) -> (X(wcallincompletefiles) & F(wvalidateapplication)))"},
		},
	},
}

// clone copies d with its own slices so callers cannot edit the table.
func (d Dataset) clone() Dataset {
	d.PrefixLengths = append([]int(nil), d.PrefixLengths...)
	d.Tiers = append([]Tier(nil), d.Tiers...)
	return d
}

// Datasets returns the known datasets in matrix order.
func Datasets() []Dataset {
	out := make([]Dataset, len(datasets))
	for i, d := range datasets {
		out[i] = d.clone()
	}
	return out
}

// LookupDataset finds a dataset by exact name, then by family substring so
// that other labelings of the same log share its tiers.
func LookupDataset(name string) (Dataset, error) {
	for _, d := range datasets {
		if d.Name == name {
			return d.clone(), nil
		}
	}
	for _, d := range datasets {
		if strings.Contains(name, d.family) {
			d.Name = name
			return d.clone(), nil
		}
	}
	return Dataset{}, cferrors.UnknownDataset(name, fmt.Errorf("%w: %q", ErrUnknownDataset, name))
}

// Tiers returns the formula tiers of a dataset.
func Tiers(name string) ([]Tier, error) {
	d, err := LookupDataset(name)
	if err != nil {
		return nil, err
	}
	return d.Tiers, nil
}
