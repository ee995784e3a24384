package constants

import (
	"strings"
)

const (
	// DefaultValue fills a field the extraction did not return.
	DefaultValue = "n/a"
	// FallbackValue replaces an enumerated value outside the allowed set.
	FallbackValue = "Unknown"
)

// Taxonomy is a closed vocabulary an enumerated field must come from.
type Taxonomy struct {
	Name     string
	Values   []string
	Synonyms map[string]string // lowercased alias -> canonical value
}

// Canonicalize maps input onto one of the taxonomy values.
func (t Taxonomy) Canonicalize(input string) (string, bool) {
	s := strings.Join(strings.Fields(input), " ")
	if s == "" {
		return "", false
	}
	for _, v := range t.Values {
		if s == v {
			return v, true
		}
	}

	normalized := strings.ToLower(s)
	for _, v := range t.Values {
		if normalized == strings.ToLower(v) {
			return v, true
		}
	}
	if v, ok := t.Synonyms[normalized]; ok {
		return v, true
	}
	// "and" vs "&" is the most common drift in model output
	swapped := strings.ReplaceAll(normalized, " and ", " & ")
	for _, v := range t.Values {
		if swapped == strings.ToLower(v) {
			return v, true
		}
	}
	return "", false
}

// Contains reports whether v is exactly one of the taxonomy values.
func (t Taxonomy) Contains(v string) bool {
	for _, x := range t.Values {
		if x == v {
			return true
		}
	}
	return false
}

var ConsultationTypes = Taxonomy{
	Name:   "consultation_type",
	Values: []string{"Regular", "Pop-up"},
	Synonyms: map[string]string{
		"pop up":               "Pop-up",
		"popup":                "Pop-up",
		"normal":               "Regular",
		"regular consultation": "Regular",
	},
}

var MaturityLevels = Taxonomy{
	Name:   "maturity_level",
	Values: []string{"Low", "Moderate", "High"},
	Synonyms: map[string]string{
		"medium":         "Moderate",
		"mid":            "Moderate",
		"moderate level": "Moderate",
		"basic":          "Low",
		"advanced":       "High",
	},
}

var CompanyTypes = Taxonomy{
	Name:   "company_type",
	Values: []string{"Startup", "Established company"},
	Synonyms: map[string]string{
		"start-up":    "Startup",
		"start up":    "Startup",
		"established": "Established company",
		"sme":         "Established company",
		"corporate":   "Established company",
	},
}

var Domains = Taxonomy{
	Name: "domain",
	Values: []string{
		"Healthcare & wellbeing",
		"Automotive",
		"Construction",
		"Manufacturing",
		"Cultural & creative industries",
		"Defense",
		"Education & training",
		"Environment & sustainability",
		"Finance",
		"Legal",
		"Security",
		"Smart cities",
		"Transport, mobility, logistics",
		"Travel & tourism",
		"Business development/business services",
		"Real estate & property",
		"Arts & entertainment",
		"Other",
	},
	Synonyms: map[string]string{
		"healthcare":        "Healthcare & wellbeing",
		"health":            "Healthcare & wellbeing",
		"education":         "Education & training",
		"environment":       "Environment & sustainability",
		"sustainability":    "Environment & sustainability",
		"fintech":           "Finance",
		"cybersecurity":     "Security",
		"logistics":         "Transport, mobility, logistics",
		"transport":         "Transport, mobility, logistics",
		"tourism":           "Travel & tourism",
		"real estate":       "Real estate & property",
		"business services": "Business development/business services",
	},
}

var AIFields = Taxonomy{
	Name: "ai_field",
	Values: []string{
		"Generative AI",
		"Machine learning",
		"Predictive analytics",
		"Computer vision & image processing",
		"Rule-based systems",
		"Other",
	},
	Synonyms: map[string]string{
		"genai":              "Generative AI",
		"llm":                "Generative AI",
		"ml":                 "Machine learning",
		"deep learning":      "Machine learning",
		"computer vision":    "Computer vision & image processing",
		"rule based systems": "Rule-based systems",
	},
}

var Services = Taxonomy{
	Name: "services",
	Values: []string{
		"Technical advice",
		"PoC development",
		"Data analysis",
		"AI roadmap design",
		"Funding application support",
		"Student thesis project",
		"Networking support",
		"R&D collaboration",
		"Data collection",
		"Use case design",
		"Technical review",
	},
	Synonyms: map[string]string{
		"proof of concept": "PoC development",
		"poc":              "PoC development",
		"funding support":  "Funding application support",
		"thesis project":   "Student thesis project",
		"networking":       "Networking support",
		"r&d":              "R&D collaboration",
		"ai roadmap":       "AI roadmap design",
		"use-case design":  "Use case design",
	},
}

var TargetGroups = Taxonomy{
	Name: "target_group",
	Values: []string{
		"Healthcare professionals",
		"Patients and healthcare consumers",
		"Medical researchers",
		"Pharmaceutical companies",
		"Dental professionals",
		"Psychologists, psychiatrists, and psychotherapists",
		"Elderly care homes and assisted living providers",
		"Functional medicine clinics and specialized healthcare providers",
		"Small and medium businesses",
		"Large enterprise companies and corporations",
		"Startups and entrepreneurs",
		"Business analysts, consultants, and advisors",
		"Software developers and tech companies",
		"AI/ML researchers and data scientists",
		"IT professionals and system administrators",
		"School students",
		"College/University students",
		"Teachers & educational professionals",
		"Educational institutions & schools",
		"Online learning platforms",
		"Organizations providing employee training and workforce education",
		"Job seekers",
		"Government agencies and public sector organizations",
		"Municipalities and city governments",
		"Defense forces and military organizations",
		"Law enforcement & security",
		"Emergency services",
		"Banks & financial institutions",
		"Insurance companies",
		"FinTech companies & payment processors",
		"Law firms & legal professionals",
		"Construction companies, contractors, and related sectors",
		"Architects, engineers, and building designers",
		"Real estate agents, property managers, and investors",
		"Property owners, landlords, and facility managers",
		"Manufacturing companies and industrial producers",
		"Automotive manufacturers and car dealerships",
		"Machine parts vendors and equipment suppliers",
		"Logistics companies and transportation operators",
		"Retail companies and e-commerce platforms",
		"Food brands, producers, and farmers",
		"Customer service and support teams",
		"Content creators and digital artists",
		"Media companies, streaming services, and entertainment industry",
		"Music schools, teachers, and music professionals",
		"Advertising agencies and marketing firms",
		"Hospitality industry, venues, and event management",
		"Travel agencies and tourism providers",
		"Shopping centers, sports arenas, and entertainment venues",
		"Energy companies and utility providers",
		"Environmental and sustainability organizations",
		"Organizations needing CSRD/ESRS compliance",
		"Research institutions, think tanks, and inventors",
		"Pharmaceutical and biotech companies",
		"Organizations seeking EU funding and grants",
		"Agriculture, food industry, and farmers",
		"Immigration authorities, migrants, and employers",
		"Recruiters, HR departments, and employment services",
		"Fitness trainers and wellness coaches",
		"General consumers and public users",
		"Senior executives and C-level leaders",
		"Knowledge workers and professionals",
		"Sport professionals",
		"Gaming companies, game programmers",
		"Other target groups not specified above",
	},
	Synonyms: map[string]string{
		"smes":      "Small and medium businesses",
		"sme":       "Small and medium businesses",
		"patients":  "Patients and healthcare consumers",
		"hospitals": "Healthcare professionals",
		"students":  "College/University students",
		"teachers":  "Teachers & educational professionals",
		"banks":     "Banks & financial institutions",
		"consumers": "General consumers and public users",
		"other":     "Other target groups not specified above",
	},
}

var DataTypes = Taxonomy{
	Name: "data_type",
	Values: []string{
		"Text data",
		"Image data",
		"Video data",
		"Audio and speech data",
		"Tabular and structured data",
		"Electronic health records and medical data",
		"Geospatial and location data",
		"Sensor signals and IoT data",
		"Financial and business data",
		"Genomics and biological data",
		"Engineering drawings and technical data",
		"Other data types",
	},
	Synonyms: map[string]string{
		"text and document data": "Text data",
		"text":                   "Text data",
		"image and visual data":  "Image data",
		"images":                 "Image data",
		"video":                  "Video data",
		"audio":                  "Audio and speech data",
		"tabular data":           "Tabular and structured data",
		"structured data":        "Tabular and structured data",
		"iot data":               "Sensor signals and IoT data",
		"sensor data":            "Sensor signals and IoT data",
		"other":                  "Other data types",
	},
}
