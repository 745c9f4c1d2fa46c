// Package render turns structured CV content into a formatted document.
// When an optimized overlay is present, its rewritten summary, experience
// descriptions, and skill ordering replace the candidate's originals.
package render

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/easygo-cv/cvforge/pkg/models"
)

// Renderer maps structured content to a byte stream. Rendering failures are
// terminal for the request; nothing retries them.
type Renderer interface {
	Render(cv models.CVRequest, overlay *models.OptimizedContent) ([]byte, error)
}

// Document renders a plain-text CV document. The section order follows the
// classic single-column layout: header, summary, experience, education,
// skills, languages, then any additional sections.
type Document struct{}

// New creates a Document renderer.
func New() *Document {
	return &Document{}
}

const rule = "----------------------------------------"

// Render implements Renderer.
func (d *Document) Render(cv models.CVRequest, overlay *models.OptimizedContent) ([]byte, error) {
	if cv.PersonalInfo.FullName == "" {
		return nil, fmt.Errorf("render: personal_info.full_name is required")
	}

	var b bytes.Buffer

	writeHeader(&b, cv.PersonalInfo)
	writeSummary(&b, cv.PersonalInfo.Summary, overlay)
	writeExperiences(&b, cv.Experiences, overlay)
	writeEducation(&b, cv.Education)
	writeSkills(&b, cv.Skills, overlay)
	writeLanguages(&b, cv.Languages)
	writeAdditionalSections(&b, cv.AdditionalSections)

	return b.Bytes(), nil
}

func section(b *bytes.Buffer, title string) {
	fmt.Fprintf(b, "\n%s\n%s\n", strings.ToUpper(title), rule)
}

func writeHeader(b *bytes.Buffer, p models.PersonalInfo) {
	fmt.Fprintf(b, "%s\n", p.FullName)

	contacts := make([]string, 0, 4)
	for _, c := range []string{p.Email, p.Phone, p.Location} {
		if c != "" {
			contacts = append(contacts, c)
		}
	}
	if len(contacts) > 0 {
		fmt.Fprintf(b, "%s\n", strings.Join(contacts, " | "))
	}

	links := make([]string, 0, 2)
	for _, l := range []string{p.LinkedIn, p.Portfolio} {
		if l != "" {
			links = append(links, l)
		}
	}
	if len(links) > 0 {
		fmt.Fprintf(b, "%s\n", strings.Join(links, " | "))
	}
}

func writeSummary(b *bytes.Buffer, original string, overlay *models.OptimizedContent) {
	summary := original
	if overlay != nil && overlay.Summary != "" {
		summary = overlay.Summary
	}
	if summary == "" {
		return
	}
	section(b, "Professional Summary")
	fmt.Fprintf(b, "%s\n", summary)
}

func writeExperiences(b *bytes.Buffer, exps []models.Experience, overlay *models.OptimizedContent) {
	if len(exps) == 0 {
		return
	}
	section(b, "Work Experience")

	for _, e := range exps {
		end := e.EndDate
		if end == "" {
			end = "Present"
		}
		fmt.Fprintf(b, "%s — %s\n", e.JobTitle, e.Company)
		meta := fmt.Sprintf("%s - %s", e.StartDate, end)
		if e.Location != "" {
			meta += " | " + e.Location
		}
		fmt.Fprintf(b, "%s\n", meta)

		desc := e.Description
		achievements := e.Achievements
		if opt := matchOptimized(e, overlay); opt != nil {
			if opt.Description != "" {
				desc = opt.Description
			}
			if len(opt.Achievements) > 0 {
				achievements = opt.Achievements
			}
		}
		if desc != "" {
			fmt.Fprintf(b, "%s\n", desc)
		}
		for _, a := range achievements {
			fmt.Fprintf(b, "  * %s\n", a)
		}
		fmt.Fprintln(b)
	}
}

// matchOptimized pairs an original experience with its rewritten overlay
// entry by job title and company.
func matchOptimized(e models.Experience, overlay *models.OptimizedContent) *models.OptimizedExperience {
	if overlay == nil {
		return nil
	}
	for i := range overlay.Experiences {
		opt := &overlay.Experiences[i]
		if strings.EqualFold(opt.JobTitle, e.JobTitle) && strings.EqualFold(opt.Company, e.Company) {
			return opt
		}
	}
	return nil
}

func writeEducation(b *bytes.Buffer, edus []models.Education) {
	if len(edus) == 0 {
		return
	}
	section(b, "Education")
	for _, e := range edus {
		fmt.Fprintf(b, "%s — %s (%s)\n", e.Degree, e.Institution, e.GraduationDate)
		extras := make([]string, 0, 2)
		if e.GPA != "" {
			extras = append(extras, "GPA: "+e.GPA)
		}
		if e.Honors != "" {
			extras = append(extras, e.Honors)
		}
		if len(extras) > 0 {
			fmt.Fprintf(b, "  %s\n", strings.Join(extras, " | "))
		}
	}
}

func writeSkills(b *bytes.Buffer, skills []models.Skill, overlay *models.OptimizedContent) {
	if len(skills) == 0 {
		return
	}
	section(b, "Skills")

	ordered := orderSkills(skills, overlay)
	parts := make([]string, 0, len(ordered))
	for _, s := range ordered {
		if s.Level != "" {
			parts = append(parts, fmt.Sprintf("%s (%s)", s.Name, s.Level))
		} else {
			parts = append(parts, s.Name)
		}
	}
	fmt.Fprintf(b, "%s\n", strings.Join(parts, ", "))
}

// orderSkills applies the overlay's relevance ordering; skills the overlay
// does not mention keep their original relative order at the end.
func orderSkills(skills []models.Skill, overlay *models.OptimizedContent) []models.Skill {
	if overlay == nil || len(overlay.SkillsOrder) == 0 {
		return skills
	}
	rank := make(map[string]int, len(overlay.SkillsOrder))
	for i, name := range overlay.SkillsOrder {
		rank[strings.ToLower(name)] = i
	}

	ordered := make([]models.Skill, len(skills))
	copy(ordered, skills)
	sort.SliceStable(ordered, func(i, j int) bool {
		ri, iOK := rank[strings.ToLower(ordered[i].Name)]
		rj, jOK := rank[strings.ToLower(ordered[j].Name)]
		switch {
		case iOK && jOK:
			return ri < rj
		case iOK:
			return true
		default:
			return false
		}
	})
	return ordered
}

func writeLanguages(b *bytes.Buffer, langs []models.Language) {
	if len(langs) == 0 {
		return
	}
	section(b, "Languages")
	parts := make([]string, 0, len(langs))
	for _, l := range langs {
		parts = append(parts, fmt.Sprintf("%s (%s)", l.Name, l.Proficiency))
	}
	fmt.Fprintf(b, "%s\n", strings.Join(parts, ", "))
}

func writeAdditionalSections(b *bytes.Buffer, sections map[string][]string) {
	if len(sections) == 0 {
		return
	}
	titles := make([]string, 0, len(sections))
	for t := range sections {
		titles = append(titles, t)
	}
	sort.Strings(titles)

	for _, title := range titles {
		section(b, title)
		for _, item := range sections[title] {
			fmt.Fprintf(b, "  * %s\n", item)
		}
	}
}

// Filename builds the attachment name for a rendered document.
func Filename(fullName string) string {
	return strings.ReplaceAll(fullName, " ", "_") + "_CV.txt"
}
