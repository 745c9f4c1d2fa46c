package models

// PersonalInfo is the candidate's contact block.
type PersonalInfo struct {
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Location  string `json:"location,omitempty"`
	LinkedIn  string `json:"linkedin,omitempty"`
	Portfolio string `json:"portfolio,omitempty"`
	Summary   string `json:"summary,omitempty"`
}

// Experience is a single work history entry.
type Experience struct {
	JobTitle     string   `json:"job_title"`
	Company      string   `json:"company"`
	Location     string   `json:"location,omitempty"`
	StartDate    string   `json:"start_date"`
	EndDate      string   `json:"end_date,omitempty"`
	Description  string   `json:"description"`
	Achievements []string `json:"achievements,omitempty"`
}

// Education is a degree or certification entry.
type Education struct {
	Degree         string `json:"degree"`
	Institution    string `json:"institution"`
	Location       string `json:"location,omitempty"`
	GraduationDate string `json:"graduation_date"`
	GPA            string `json:"gpa,omitempty"`
	Honors         string `json:"honors,omitempty"`
}

// Skill is a technical or soft skill with an optional level.
type Skill struct {
	Name  string `json:"name"`
	Level string `json:"level,omitempty"`
}

// Language pairs a language with a proficiency label.
type Language struct {
	Name        string `json:"name"`
	Proficiency string `json:"proficiency"`
}

// CVRequest carries the candidate's data plus the target job description.
type CVRequest struct {
	JobDescription     string              `json:"job_description"`
	PersonalInfo       PersonalInfo        `json:"personal_info"`
	Experiences        []Experience        `json:"experiences,omitempty"`
	Education          []Education         `json:"education,omitempty"`
	Skills             []Skill             `json:"skills,omitempty"`
	Languages          []Language          `json:"languages,omitempty"`
	AdditionalSections map[string][]string `json:"additional_sections,omitempty"`
}

// OptimizedExperience is a rewritten work history entry returned by the model.
type OptimizedExperience struct {
	JobTitle     string   `json:"job_title"`
	Company      string   `json:"company"`
	Description  string   `json:"description"`
	Achievements []string `json:"achievements,omitempty"`
}

// OptimizedContent is the model-produced overlay applied on top of the
// candidate's original data when rendering.
type OptimizedContent struct {
	Summary     string                `json:"summary,omitempty"`
	Experiences []OptimizedExperience `json:"experiences,omitempty"`
	SkillsOrder []string              `json:"skills_order,omitempty"`
	Suggestions []string              `json:"suggestions,omitempty"`
}

// CVResponse is the JSON body for optimization results.
type CVResponse struct {
	Success          bool              `json:"success"`
	Message          string            `json:"message"`
	OptimizedContent *OptimizedContent `json:"optimized_content,omitempty"`
	Suggestions      []string          `json:"suggestions,omitempty"`
	Cached           bool              `json:"cached"`
	TokensRemaining  int               `json:"tokens_remaining"`
	ModelUsed        string            `json:"model_used,omitempty"`
	TokensUsed       int               `json:"tokens_used,omitempty"`
}
