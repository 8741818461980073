package agents

// Agent is one entry of the directory feeding roster generation.
type Agent struct {
	EmpCode    string `json:"emp" validate:"required,max=32"`
	Name       string `json:"name" validate:"required,max=128"`
	Level      int    `json:"level" validate:"min=0,max=20"`
	Department string `json:"dept" validate:"max=128"`
	Location   string `json:"loc" validate:"max=128"`
}
