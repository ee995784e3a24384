package schema

import "github.com/joseph-ayodele/consultation-extract/constants"

// CompanyInfoName is also the extraction agent's schema identity.
const CompanyInfoName = "company-info"

// CompanyInfo is the consultation report schema: one row per company consulted.
func CompanyInfo() *Schema {
	return MustNew(CompanyInfoName,
		Field{
			Name:        "company_name",
			Column:      "Company Name",
			Type:        TypeString,
			Required:    true,
			SourceHint:  true,
			Description: "The name of the company",
		},
		Field{
			Name:        "country",
			Column:      "Country",
			Type:        TypeString,
			Required:    true,
			Description: "Country where the company is located or headquartered",
		},
		Field{
			Name:        "consultation_date",
			Column:      "Consultation Date",
			Type:        TypeDate,
			Required:    true,
			Description: "Date of the consultation or report in dd-mm-yyyy format (e.g., 15-03-2024)",
		},
		Field{
			Name:        "experts",
			Column:      "Experts",
			Type:        TypeString,
			Required:    true,
			Description: "Names of the persons providing AI consultancy, separated by commas",
		},
		Field{
			Name:        "consultation_type",
			Column:      "Consultation Type",
			Type:        TypeEnum,
			Required:    true,
			Taxonomy:    &constants.ConsultationTypes,
			Description: "Type of consultation, either 'Regular' or 'Pop-up'. Must be explicitly mentioned in the document.",
		},
		Field{
			Name:        "domain",
			Column:      "Domain",
			Type:        TypeEnum,
			Required:    true,
			Taxonomy:    &constants.Domains,
			Wrapper:     "domain",
			Aliases:     []string{"domain_info"},
			Description: "The primary industry domain the company belongs to. Choose ONE; use 'Other' if nothing fits.",
		},
		Field{
			Name:        "ai_field",
			Column:      "AI Field",
			Type:        TypeEnum,
			Required:    true,
			Taxonomy:    &constants.AIFields,
			Wrapper:     "ai_field",
			Aliases:     []string{"ai_field_info"},
			Description: "The primary AI field the company is using or planning to use. Choose ONE; use 'Other' if nothing fits.",
		},
		Field{
			Name:        "intended_solution",
			Column:      "Intended Solution",
			Type:        TypeString,
			Required:    true,
			Description: "One short phrase describing the proposed AI solution, e.g. 'Computer vision system for quality control'",
		},
		Field{
			Name:        "ai_maturity_level",
			Column:      "AI Maturity Level",
			Type:        TypeEnum,
			Required:    true,
			Taxonomy:    &constants.MaturityLevels,
			Description: "Company's AI maturity level: Low, Moderate, or High",
		},
		Field{
			Name:        "technical_expertise",
			Column:      "Technical Expertise",
			Type:        TypeEnum,
			Required:    true,
			Taxonomy:    &constants.MaturityLevels,
			Description: "Company's technical expertise and capability level: Low, Moderate, or High",
		},
		Field{
			Name:        "company_type",
			Column:      "Company Type",
			Type:        TypeEnum,
			Required:    true,
			Taxonomy:    &constants.CompanyTypes,
			Description: "Type of company, either 'Startup' or 'Established company'",
		},
		Field{
			Name:        "target_market",
			Column:      "Target Market",
			Type:        TypeEnumList,
			Required:    true,
			Taxonomy:    &constants.TargetGroups,
			Wrapper:     "target_group",
			Description: "Target groups that would most benefit from the AI solution. Return a list, e.g. [\"Job seekers\"].",
		},
		Field{
			Name:        "data_requirements",
			Column:      "Data Requirements",
			Type:        TypeEnumList,
			Required:    true,
			Taxonomy:    &constants.DataTypes,
			Wrapper:     "data_type",
			Description: "Types of data required for the AI solution. Return a list, e.g. [\"Text data\", \"Image data\"].",
		},
		Field{
			Name:        "fair_services_sought",
			Column:      "FAIR Services Sought",
			Type:        TypeEnumList,
			Required:    true,
			Taxonomy:    &constants.Services,
			Wrapper:     "services",
			Description: "Services expected by the company. Return a list, e.g. [\"Technical advice\", \"PoC development\"].",
		},
		Field{
			Name:        "recommendations",
			Column:      "Recommendations",
			Type:        TypeString,
			Required:    true,
			Description: "Very brief key recommendations, separated by semicolons. Each action point a short phrase.",
		},
	)
}
