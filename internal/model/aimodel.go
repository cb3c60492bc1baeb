package model

// AIModel describes one deployed classification model: where to send
// prediction requests and how to shape the per-row payload.
type AIModel struct {
	ID           string       `json:"id" yaml:"id"`
	Name         string       `json:"name" yaml:"name"`
	Description  string       `json:"description,omitempty" yaml:"description,omitempty"`
	DeploymentID string       `json:"deployment_id" yaml:"deployment_id"`
	Label        string       `json:"label" yaml:"label"`
	SkipField    string       `json:"skip_field,omitempty" yaml:"skip_field,omitempty"`
	Default      bool         `json:"default" yaml:"default"`
	Inputs       []InputField `json:"inputs" yaml:"inputs"`
}

// InputField describes one input column of a model. Aliases are alternate
// source column names checked in order when the primary name is absent.
// Formatter names a registered formatter strategy; formatters are looked up
// by name so model definitions stay serializable.
type InputField struct {
	Name      string   `json:"name" yaml:"name"`
	Aliases   []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Formatter string   `json:"formatter,omitempty" yaml:"formatter,omitempty"`
}
