package fhir

import (
	"time"
)

type Meta struct {
	VersionID   string    `json:"versionId,omitempty"`
	LastUpdated time.Time `json:"lastUpdated,omitempty"`
}

type Reference struct {
	Reference string `json:"reference,omitempty"`
	Type      string `json:"type,omitempty"`
	Display   string `json:"display,omitempty"`
}

type Identifier struct {
	Use    string `json:"use,omitempty"`
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
}

type Extension struct {
	URL         string     `json:"url"`
	ValueString string     `json:"valueString,omitempty"`
	ValueDate   *time.Time `json:"valueDateTime,omitempty"`
}

// FormatReference builds a relative literal reference such as "Patient/42".
func FormatReference(resourceType, id string) string {
	return resourceType + "/" + id
}
