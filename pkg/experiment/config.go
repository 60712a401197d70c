// Package experiment plans and executes the dataset × prefix × tier ×
// search matrix: encode, train, check conformance, explain.
package experiment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/logflow/conformflow/pkg/conformance"
	cferrors "github.com/logflow/conformflow/pkg/errors"
	"github.com/logflow/conformflow/pkg/explain"
	"github.com/logflow/conformflow/pkg/predictive"
)

// ErrSplitMismatch is returned when train, validation and test ratios do
// not sum to exactly one.
var ErrSplitMismatch = errors.New("experiment: split ratios must sum to 1")

// Settings is the loosely typed form of a run configuration, as read from
// YAML or flags. NewConfig turns it into a Config.
type Settings struct {
	DataPath       string    `yaml:"data" validate:"required"`
	Split          []float64 `yaml:"split" validate:"len=3,dive,gte=0,lte=1"`
	Output         string    `yaml:"output" validate:"required"`
	Results        string    `yaml:"results"`
	ModelsDir      string    `yaml:"models_dir"`
	PrefixLength   int       `yaml:"prefix_length" validate:"gt=0"`
	Padding        bool      `yaml:"padding"`
	Encoding       string    `yaml:"encoding" validate:"oneof=simple"`
	Labeling       string    `yaml:"labeling" validate:"oneof=attribute_string"`
	Model          string    `yaml:"predictive_model" validate:"oneof=perceptron naive_bayes"`
	Explainer      string    `yaml:"explainer" validate:"oneof=baseline"`
	Target         string    `yaml:"target" validate:"oneof=auc f1_score accuracy"`
	Epochs         int       `yaml:"epochs" validate:"gte=1"`
	Seed           int64     `yaml:"seed"`
	Jobs           int       `yaml:"jobs" validate:"gte=0"`
	Acceptance     string    `yaml:"acceptance" validate:"oneof=end visit"`
	LabelAttribute string    `yaml:"label_attribute"`
	TotalCFs       int       `yaml:"total_cfs" validate:"gte=0"`
}

// DefaultSettings mirrors the published experiment setup. DataPath and
// PrefixLength are filled per run.
func DefaultSettings() Settings {
	return Settings{
		Split:          []float64{0.7, 0.15, 0.15},
		Output:         "output_data",
		Results:        "results",
		ModelsDir:      "process_models",
		Padding:        true,
		Encoding:       "simple",
		Labeling:       "attribute_string",
		Model:          "perceptron",
		Explainer:      "baseline",
		Target:         "auc",
		Epochs:         20,
		Seed:           42,
		Jobs:           12,
		Acceptance:     "end",
		LabelAttribute: "label",
		TotalCFs:       explain.DefaultTotalCFs,
	}
}

// Encoding is the prefix encoding.
type Encoding uint8

const (
	SimpleIndex Encoding = iota + 1
)

// Labeling is the labeling strategy.
type Labeling uint8

const (
	AttributeString Labeling = iota + 1
)

// Split holds validated split ratios.
type Split struct {
	Train, Val, Test float64
}

// Config is a validated, typed run configuration. It is passed by value
// and never modified after NewConfig.
type Config struct {
	DataPath       string
	Split          Split
	Output         string
	Results        string
	ModelsDir      string
	PrefixLength   int
	Padding        bool
	Encoding       Encoding
	Labeling       Labeling
	Model          predictive.Method
	Explainer      explain.Method
	Target         predictive.Target
	Epochs         int
	Seed           int64
	Jobs           int
	Acceptance     conformance.AcceptanceMode
	LabelAttribute string
	TotalCFs       int
}

var validate = validator.New()

// CheckSplit verifies with exact decimal arithmetic that ratios sum to one.
func CheckSplit(ratios []float64) error {
	if len(ratios) != 3 {
		return cferrors.SplitMismatch(fmt.Sprint(ratios), fmt.Errorf("%w: want 3 ratios, got %d", ErrSplitMismatch, len(ratios)))
	}
	sum := decimal.Zero
	for _, r := range ratios {
		sum = sum.Add(decimal.NewFromFloat(r))
	}
	if !sum.Equal(decimal.NewFromInt(1)) {
		return cferrors.SplitMismatch(sum.String(), ErrSplitMismatch)
	}
	return nil
}

// NewConfig validates s and returns its typed form. The split check runs
// first, so a mismatch is reported before anything else is looked at.
func NewConfig(s Settings) (Config, error) {
	if err := CheckSplit(s.Split); err != nil {
		return Config{}, err
	}
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return Config{}, err
		}
		var multi cferrors.MultiError
		for _, fe := range verrs {
			multi.Add(cferrors.New(cferrors.CodeInvalidEnum, "invalid setting").
				WithContext("field", strings.ToLower(fe.Field())).
				WithContext("rule", fe.Tag()).
				WithContext("value", fe.Value()))
		}
		return Config{}, multi.Combined()
	}

	model, err := predictive.ParseMethod(s.Model)
	if err != nil {
		return Config{}, err
	}
	explainer, err := explain.ParseMethod(s.Explainer)
	if err != nil {
		return Config{}, err
	}
	target, err := predictive.ParseTarget(s.Target)
	if err != nil {
		return Config{}, err
	}
	acceptance, err := conformance.ParseAcceptanceMode(s.Acceptance)
	if err != nil {
		return Config{}, err
	}

	return Config{
		DataPath:       s.DataPath,
		Split:          Split{Train: s.Split[0], Val: s.Split[1], Test: s.Split[2]},
		Output:         s.Output,
		Results:        s.Results,
		ModelsDir:      s.ModelsDir,
		PrefixLength:   s.PrefixLength,
		Padding:        s.Padding,
		Encoding:       SimpleIndex,
		Labeling:       AttributeString,
		Model:          model,
		Explainer:      explainer,
		Target:         target,
		Epochs:         s.Epochs,
		Seed:           s.Seed,
		Jobs:           s.Jobs,
		Acceptance:     acceptance,
		LabelAttribute: s.LabelAttribute,
		TotalCFs:       s.TotalCFs,
	}, nil
}
