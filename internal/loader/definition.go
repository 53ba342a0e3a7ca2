// Package loader turns serialized catalog definitions into validated catalog
// versions. Definitions are YAML documents, optionally zstd-compressed, read
// from a directory, an S3 prefix or the catalog_versions table.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"pricebook/internal/types"
)

// Definition is the YAML form of one catalog version.
type Definition struct {
	CatalogName   string               `yaml:"catalogName" validate:"required"`
	EffectiveDate time.Time            `yaml:"effectiveDate" validate:"required"`
	Currencies    []string             `yaml:"currencies" validate:"required,min=1,dive,len=3,uppercase"`
	Products      []ProductDefinition  `yaml:"products" validate:"dive"`
	Rules         RulesDefinition      `yaml:"rules"`
	Plans         []PlanDefinition     `yaml:"plans" validate:"dive"`
	PriceLists    PriceListsDefinition `yaml:"priceLists"`
}

type ProductDefinition struct {
	Name      string   `yaml:"name" validate:"required"`
	Category  string   `yaml:"category" validate:"required,oneof=BASE ADD_ON STANDALONE"`
	Retired   bool     `yaml:"retired,omitempty"`
	Included  []string `yaml:"included,omitempty"`
	Available []string `yaml:"available,omitempty"`
}

type PlanDefinition struct {
	Name                                  string            `yaml:"name" validate:"required"`
	Product                               string            `yaml:"product" validate:"required"`
	Retired                               bool              `yaml:"retired,omitempty"`
	PlansAllowedInBundle                  int               `yaml:"plansAllowedInBundle" validate:"min=-1"`
	EffectiveDateForExistingSubscriptions *time.Time        `yaml:"effectiveDateForExistingSubscriptions,omitempty"`
	InitialPhases                         []PhaseDefinition `yaml:"initialPhases,omitempty" validate:"dive"`
	FinalPhase                            *PhaseDefinition  `yaml:"finalPhase" validate:"required"`
}

type PhaseDefinition struct {
	Type           string             `yaml:"type" validate:"required"`
	Duration       DurationDefinition `yaml:"duration"`
	BillingPeriod  string             `yaml:"billingPeriod"`
	FixedPrice     *[]PriceDefinition `yaml:"fixedPrice,omitempty"`
	RecurringPrice *[]PriceDefinition `yaml:"recurringPrice,omitempty"`
}

type DurationDefinition struct {
	Unit   string `yaml:"unit" validate:"required"`
	Number *int   `yaml:"number"`
}

type PriceDefinition struct {
	Currency string `yaml:"currency"`
	Value    string `yaml:"value"`
}

// CaseDefinition is the flat YAML form shared by every rule case kind. Which
// selector and result fields apply depends on the list the case sits in.
type CaseDefinition struct {
	PhaseType string `yaml:"phaseType,omitempty"`

	Product         string `yaml:"product,omitempty"`
	ProductCategory string `yaml:"productCategory,omitempty"`
	BillingPeriod   string `yaml:"billingPeriod,omitempty"`
	PriceList       string `yaml:"priceList,omitempty"`

	FromProduct         string `yaml:"fromProduct,omitempty"`
	FromProductCategory string `yaml:"fromProductCategory,omitempty"`
	FromBillingPeriod   string `yaml:"fromBillingPeriod,omitempty"`
	FromPriceList       string `yaml:"fromPriceList,omitempty"`
	ToProduct           string `yaml:"toProduct,omitempty"`
	ToProductCategory   string `yaml:"toProductCategory,omitempty"`
	ToBillingPeriod     string `yaml:"toBillingPeriod,omitempty"`
	ToPriceList         string `yaml:"toPriceList,omitempty"`

	Policy    string `yaml:"policy,omitempty"`
	Alignment string `yaml:"alignment,omitempty"`
	Result    string `yaml:"result,omitempty"`
}

type ChangeRuleDefinition struct {
	Qualifier string `yaml:"qualifier" validate:"required"`
	PhaseType string `yaml:"phaseType,omitempty"`
	Policy    string `yaml:"policy" validate:"required"`
}

type RulesDefinition struct {
	ChangePolicy     []CaseDefinition       `yaml:"changePolicy"`
	ChangeRules      []ChangeRuleDefinition `yaml:"changeRules" validate:"dive"`
	ChangeAlignment  []CaseDefinition       `yaml:"changeAlignment"`
	CancelPolicy     []CaseDefinition       `yaml:"cancelPolicy"`
	CreateAlignment  []CaseDefinition       `yaml:"createAlignment"`
	BillingAlignment []CaseDefinition       `yaml:"billingAlignment"`
	PriceList        []CaseDefinition       `yaml:"priceList"`
	ProductTiers     [][]string             `yaml:"productTiers,omitempty"`
}

type PriceListDefinition struct {
	Name    string   `yaml:"name"`
	Retired bool     `yaml:"retired,omitempty"`
	Plans   []string `yaml:"plans"`
}

type PriceListsDefinition struct {
	Default  PriceListDefinition   `yaml:"default"`
	Children []PriceListDefinition `yaml:"children,omitempty" validate:"dive"`
}

var definitionValidator = validator.New(validator.WithRequiredStructEnabled())

// Decode reads one YAML definition. Unknown fields are rejected and struct
// constraints are checked before the definition is returned.
func Decode(r io.Reader) (*Definition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var def Definition
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, types.NewAppError(types.ErrCodeValidationCatalogInvalid, "catalog definition is empty", err)
		}
		return nil, types.NewAppError(types.ErrCodeValidationCatalogInvalid,
			fmt.Sprintf("malformed catalog definition: %v", err), err)
	}
	if err := definitionValidator.Struct(&def); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, len(verrs))
			for i, fe := range verrs {
				fields[i] = fmt.Sprintf("%s failed '%s'", fe.Namespace(), fe.Tag())
			}
			return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationCatalogInvalid,
				fmt.Sprintf("catalog definition '%s' has %d invalid field(s)", def.CatalogName, len(verrs)),
				err, map[string]any{"fields": fields})
		}
		return nil, types.NewAppError(types.ErrCodeValidationCatalogInvalid, "catalog definition validation failed", err)
	}
	return &def, nil
}

// DecodeBytes is Decode over an in-memory document.
func DecodeBytes(data []byte) (*Definition, error) {
	return Decode(bytes.NewReader(data))
}

// Encode writes def as YAML.
func Encode(w io.Writer, def *Definition) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(def); err != nil {
		return fmt.Errorf("failed to encode catalog definition: %w", err)
	}
	return enc.Close()
}
