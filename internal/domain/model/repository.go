package model

// Repository represents a GitHub repository accessible to the current
// credential.
type Repository struct {
	Name          string `json:"name"`
	Owner         string `json:"owner"`
	FullName      string `json:"full_name"`
	URL           string `json:"url"`
	Description   string `json:"description,omitempty"`
	DefaultBranch string `json:"default_branch"`
	Private       bool   `json:"private"`
}

// Branch represents a repository branch head.
type Branch struct {
	Name      string `json:"name"`
	SHA       string `json:"sha"`
	Protected bool   `json:"protected"`
}
