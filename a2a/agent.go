package a2a

// AgentProvider identifies the organization that operates an agent.
type AgentProvider struct {
	Organization string `json:"organization"`
	URL          string `json:"url,omitempty"`
}

// AgentCapabilities advertises optional protocol features.
type AgentCapabilities struct {
	Streaming              bool `json:"streaming"`
	PushNotifications      bool `json:"pushNotifications"`
	StateTransitionHistory bool `json:"stateTransitionHistory"`
}

// AgentSkill describes one capability the agent exposes to clients.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	Examples    []string `json:"examples,omitempty"`
	InputModes  []string `json:"inputModes,omitempty"`
	OutputModes []string `json:"outputModes,omitempty"`
}

// AgentCard is the self-description document served at
// /.well-known/agent.json.
type AgentCard struct {
	Name                            string            `json:"name"`
	Description                     string            `json:"description,omitempty"`
	URL                             string            `json:"url"`
	Version                         string            `json:"version"`
	DocumentationURL                string            `json:"documentationUrl,omitempty"`
	Provider                        *AgentProvider    `json:"provider,omitempty"`
	Capabilities                    AgentCapabilities `json:"capabilities"`
	DefaultInputModes               []string          `json:"defaultInputModes"`
	DefaultOutputModes              []string          `json:"defaultOutputModes"`
	Skills                          []AgentSkill      `json:"skills"`
	Security                        []map[string][]string `json:"security,omitempty"`
	SupportsAuthenticatedExtendedCard bool             `json:"supportsAuthenticatedExtendedCard,omitempty"`
}

// PushNotificationAuthentication describes how the agent should
// authenticate itself when delivering a push notification.
type PushNotificationAuthentication struct {
	Schemes     []string `json:"schemes,omitempty"`
	Credentials string   `json:"credentials,omitempty"`
}

// PushNotificationConfig is one outbound delivery target for a task.
// ConfigID distinguishes multiple configs on the same task; it defaults
// to the taskId when a caller registers a single, unnamed config.
type PushNotificationConfig struct {
	ConfigID       string                           `json:"id,omitempty"`
	URL            string                           `json:"url"`
	Token          string                           `json:"token,omitempty"`
	Authentication *PushNotificationAuthentication `json:"authentication,omitempty"`
}

// TaskPushNotificationConfig pairs a PushNotificationConfig with the
// task it applies to, the shape used on the wire by the
// pushNotificationConfig/* methods.
type TaskPushNotificationConfig struct {
	TaskID                  string                  `json:"taskId"`
	PushNotificationConfig PushNotificationConfig `json:"pushNotificationConfig"`
}
