package genai

import (
	"fmt"
	"strings"

	"github.com/easygo-cv/cvforge/pkg/models"
)

// suggestionsPrompt asks for concrete CV advice for a job posting, as JSON.
func suggestionsPrompt(jobDescription string, experienceYears int) []Message {
	return []Message{
		{
			Role:    "system",
			Content: "You are an expert in CV optimization and recruiting. You always answer with valid JSON.",
		},
		{
			Role: "user",
			Content: fmt.Sprintf(`Based on this job description, generate suggestions for a CV with %d years of experience:

%s

Provide:
1. 5 key skills the CV should include
2. 3 quantifiable achievements that would be ideal to have
3. 2 keywords that matter for ATS screening

JSON format:
{
    "skills": ["skill1", "skill2", ...],
    "achievements": ["achievement1", "achievement2", "achievement3"],
    "keywords": ["keyword1", "keyword2"]
}`, experienceYears, jobDescription),
		},
	}
}

// optimizePrompt asks the model to rewrite the candidate's content for the
// target job without inventing anything, returning the overlay as JSON.
func optimizePrompt(jobDescription string, cv models.CVRequest) []Message {
	var b strings.Builder

	fmt.Fprintf(&b, `You are an expert in human resources and CV writing. Rewrite this CV so it matches the following job description as closely as possible without fabricating information.

JOB DESCRIPTION:
%s

CANDIDATE:
Name: %s
Email: %s
Current summary: %s

WORK EXPERIENCE:
%s

EDUCATION:
%s

SKILLS:
%s

LANGUAGES:
%s

INSTRUCTIONS:
1. Rewrite the professional summary to highlight the skills most relevant to the role
2. Adjust the experience descriptions to emphasize relevant achievements
3. Reorder the skills so the most important ones for this job come first
4. Provide 3-5 specific suggestions to improve the CV
5. Do NOT invent information - only rewrite and reorganize what exists

RESPONSE FORMAT:
Return valid JSON with this structure:
{
    "summary": "Optimized professional summary...",
    "experiences": [
        {
            "job_title": "original title",
            "company": "original company",
            "description": "optimized description...",
            "achievements": ["achievement 1", "achievement 2"]
        }
    ],
    "skills_order": ["most relevant skill", "second most relevant", ...],
    "suggestions": ["Specific suggestion 1", "Specific suggestion 2", "Specific suggestion 3"]
}`,
		jobDescription,
		orDefault(cv.PersonalInfo.FullName, "N/A"),
		orDefault(cv.PersonalInfo.Email, "N/A"),
		orDefault(cv.PersonalInfo.Summary, "no summary"),
		formatExperiences(cv.Experiences),
		formatEducation(cv.Education),
		formatSkills(cv.Skills),
		formatLanguages(cv.Languages),
	)

	return []Message{
		{
			Role:    "system",
			Content: "You are an expert in CV optimization and ATS (Applicant Tracking Systems). You always answer with valid JSON.",
		},
		{Role: "user", Content: b.String()},
	}
}

func formatExperiences(exps []models.Experience) string {
	if len(exps) == 0 {
		return "No recorded experience"
	}
	lines := make([]string, 0, len(exps))
	for _, e := range exps {
		end := e.EndDate
		if end == "" {
			end = "Present"
		}
		lines = append(lines, fmt.Sprintf("- %s at %s (%s - %s)\n  Description: %s",
			e.JobTitle, e.Company, e.StartDate, end, e.Description))
	}
	return strings.Join(lines, "\n")
}

func formatEducation(edus []models.Education) string {
	if len(edus) == 0 {
		return "No recorded education"
	}
	lines := make([]string, 0, len(edus))
	for _, e := range edus {
		lines = append(lines, fmt.Sprintf("- %s at %s (graduated: %s)",
			e.Degree, e.Institution, e.GraduationDate))
	}
	return strings.Join(lines, "\n")
}

func formatSkills(skills []models.Skill) string {
	if len(skills) == 0 {
		return "No recorded skills"
	}
	names := make([]string, 0, len(skills))
	for _, s := range skills {
		names = append(names, s.Name)
	}
	return strings.Join(names, ", ")
}

func formatLanguages(langs []models.Language) string {
	if len(langs) == 0 {
		return "No recorded languages"
	}
	parts := make([]string, 0, len(langs))
	for _, l := range langs {
		parts = append(parts, fmt.Sprintf("%s (%s)", l.Name, l.Proficiency))
	}
	return strings.Join(parts, ", ")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
