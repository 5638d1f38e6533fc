package proofing

import (
	"slices"
	"time"

	"github.com/Skryldev/proofing-amp/models"
	"github.com/Skryldev/proofing-amp/repo"
)

// Context names.
const (
	OIDCProofing         = "oidc_proofing"
	LetterProofing       = "letter_proofing"
	LookupMobileProofing = "lookup_mobile_proofing"
	EmailProofing        = "email_proofing"
	PhoneProofing        = "phone_proofing"
	PersonalData         = "personal_data"
	Security             = "security"
	Orcid                = "orcid"
	Eidas                = "eidas"
)

// Definition is the static description of one proofing context.
type Definition struct {
	Name           string
	Method         string
	Schema         *models.Schema
	SetWhitelist   []string
	UnsetWhitelist []string
	// Legacy contexts upgrade stored formats only from their cutover on.
	Legacy         bool
	DefaultCutover time.Time
	Namespace      repo.Namespace
}

// legacyCutover applies to legacy contexts whose configuration names none.
var legacyCutover = time.Date(2018, time.January, 1, 0, 0, 0, 0, time.UTC)

// definitions is the preconfigured context table. The nin-carrying contexts
// whitelist norEduPersonNIN for set as well as unset so that documents still
// in the old format propagate until their cutover.
var definitions = []Definition{
	{
		Name:           OIDCProofing,
		Method:         "oidc",
		Schema:         models.ProofingUserSchema,
		SetWhitelist:   []string{"norEduPersonNIN", "nins"},
		UnsetWhitelist: []string{"norEduPersonNIN", "nins"},
		Legacy:         true,
		DefaultCutover: legacyCutover,
		Namespace:      repo.Namespace{Database: "eduid_oidc_proofing", Collection: "proofing_data"},
	},
	{
		Name:           LetterProofing,
		Method:         "letter",
		Schema:         models.ProofingUserSchema,
		SetWhitelist:   []string{"norEduPersonNIN", "nins", "letter_proofing_data"},
		UnsetWhitelist: []string{"norEduPersonNIN", "nins"},
		Legacy:         true,
		DefaultCutover: legacyCutover,
		Namespace:      repo.Namespace{Database: "eduid_idproofing_letter", Collection: "proofing_data"},
	},
	{
		Name:           LookupMobileProofing,
		Method:         "nin",
		Schema:         models.ProofingUserSchema,
		SetWhitelist:   []string{"norEduPersonNIN", "nins"},
		UnsetWhitelist: []string{"norEduPersonNIN", "nins"},
		Legacy:         true,
		DefaultCutover: legacyCutover,
		Namespace:      repo.Namespace{Database: "eduid_lookup_mobile_proofing", Collection: "proofing_data"},
	},
	{
		Name:           EmailProofing,
		Method:         "email",
		Schema:         models.ProofingUserSchema,
		SetWhitelist:   []string{"mailAliases"},
		UnsetWhitelist: []string{"mailAliases"},
		Namespace:      repo.Namespace{Database: "eduid_email", Collection: "proofing_data"},
	},
	{
		Name:           PhoneProofing,
		Method:         "phone",
		Schema:         models.ProofingUserSchema,
		SetWhitelist:   []string{"phone"},
		UnsetWhitelist: []string{"phone"},
		Namespace:      repo.Namespace{Database: "eduid_phone", Collection: "proofing_data"},
	},
	{
		Name:           PersonalData,
		Method:         "personal-data",
		Schema:         models.UserSchema,
		SetWhitelist:   []string{"givenName", "surname", "displayName", "preferredLanguage"},
		UnsetWhitelist: []string{"sn"},
		Legacy:         true,
		DefaultCutover: legacyCutover,
		Namespace:      repo.Namespace{Database: "eduid_personal_data", Collection: "profiles"},
	},
	{
		Name:           Security,
		Method:         "security",
		Schema:         models.UserSchema,
		SetWhitelist:   []string{"passwords", "terminated"},
		UnsetWhitelist: []string{"passwords", "terminated"},
		Namespace:      repo.Namespace{Database: "eduid_security", Collection: "profiles"},
	},
	{
		Name:           Orcid,
		Method:         "orcid",
		Schema:         models.ProofingUserSchema,
		SetWhitelist:   []string{"orcid"},
		UnsetWhitelist: []string{"orcid"},
		Namespace:      repo.Namespace{Database: "eduid_orcid", Collection: "proofing_data"},
	},
	{
		Name:           Eidas,
		Method:         "eidas",
		Schema:         models.ProofingUserSchema,
		SetWhitelist:   []string{"passwords"},
		UnsetWhitelist: []string{},
		Namespace:      repo.Namespace{Database: "eduid_eidas", Collection: "proofing_data"},
	},
}

// Definitions returns a copy of the preconfigured context table.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	for i, d := range definitions {
		d.SetWhitelist = slices.Clone(d.SetWhitelist)
		d.UnsetWhitelist = slices.Clone(d.UnsetWhitelist)
		out[i] = d
	}
	return out
}

// Lookup returns the definition for name.
func Lookup(name string) (Definition, error) {
	for _, d := range Definitions() {
		if d.Name == name {
			return d, nil
		}
	}
	return Definition{}, unknownContext(name)
}

// ContextNames returns the names of the preconfigured contexts in table order.
func ContextNames() []string {
	names := make([]string, len(definitions))
	for i, d := range definitions {
		names[i] = d.Name
	}
	return names
}
