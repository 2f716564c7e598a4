package models

// AgentPersona is a statically configured analysis persona read from
// <agents_dir>/<id>.agent.yaml.
type AgentPersona struct {
	ID    string `yaml:"-" json:"id"`
	Agent struct {
		Metadata struct {
			Name string `yaml:"name" json:"name"`
			Icon string `yaml:"icon" json:"icon"`
		} `yaml:"metadata" json:"metadata"`
		Persona struct {
			Role               string `yaml:"role" json:"role"`
			Identity           string `yaml:"identity" json:"identity"`
			CommunicationStyle string `yaml:"communication_style" json:"communication_style"`
			Principles         string `yaml:"principles" json:"principles"`
		} `yaml:"persona" json:"persona"`
		Activation struct {
			PromptFile string `yaml:"prompt_file" json:"prompt_file"`
		} `yaml:"activation" json:"activation"`
	} `yaml:"agent" json:"agent"`
}

// AgentCatalogEntry is a router-visible agent from conversation-agents.yaml.
type AgentCatalogEntry struct {
	ID             string `yaml:"id" json:"id"`
	Name           string `yaml:"name" json:"name"`
	Avatar         string `yaml:"avatar" json:"avatar"`
	Responsibility string `yaml:"responsibility" json:"responsibility"`
	Description    string `yaml:"description" json:"description"`
}

// BotInfo attributes a reply to an agent.
type BotInfo struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Role   string `json:"role"`
}
