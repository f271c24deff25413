package warehouse

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"jobpulse/internal/model"
)

const upsertFeaturesSQL = `INSERT INTO job_postings_features (
	job_id, extracted_at, state, city, role_family, seniority,
	is_remote, years_experience_min, skills, skills_count, top_skills
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (job_id) DO UPDATE SET
	extracted_at         = excluded.extracted_at,
	state                = excluded.state,
	city                 = excluded.city,
	role_family          = excluded.role_family,
	seniority            = excluded.seniority,
	is_remote            = excluded.is_remote,
	years_experience_min = excluded.years_experience_min,
	skills               = excluded.skills,
	skills_count         = excluded.skills_count,
	top_skills           = excluded.top_skills`

// UpsertFeatures writes a batch of feature rows keyed by job_id. Skill lists
// are stored as JSON arrays so the BI layer can query them directly.
func (w *Warehouse) UpsertFeatures(ctx context.Context, features []model.PostingFeatures) (int, error) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("upsert features: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertFeaturesSQL)
	if err != nil {
		return 0, fmt.Errorf("upsert features: prepare: %w", err)
	}
	defer stmt.Close()

	for _, f := range features {
		skills, err := json.Marshal(emptyIfNil(f.Skills))
		if err != nil {
			return 0, fmt.Errorf("marshaling skills for %s: %w", f.JobID, err)
		}
		topSkills, err := json.Marshal(emptyIfNil(f.TopSkills))
		if err != nil {
			return 0, fmt.Errorf("marshaling top skills for %s: %w", f.JobID, err)
		}

		_, err = stmt.ExecContext(ctx,
			f.JobID, fmtTime(f.ExtractedAt), nullString(f.State), nullString(f.City),
			f.RoleFamily, f.Seniority, f.IsRemote, nullInt(f.YearsExperienceMin),
			string(skills), f.SkillsCount, string(topSkills),
		)
		if err != nil {
			return 0, fmt.Errorf("upsert features %s: %w", f.JobID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("upsert features: commit: %w", err)
	}
	return len(features), nil
}

// GetFeatures returns the features row for job_id, or nil if absent.
func (w *Warehouse) GetFeatures(ctx context.Context, jobID string) (*model.PostingFeatures, error) {
	var (
		f           model.PostingFeatures
		extractedAt string
		state, city sql.NullString
		yoe         sql.NullInt64
		skills      string
		topSkills   string
	)
	err := w.db.QueryRowContext(ctx, `
		SELECT job_id, extracted_at, state, city, role_family, seniority,
		       is_remote, years_experience_min, skills, skills_count, top_skills
		FROM job_postings_features WHERE job_id = ?`, jobID).
		Scan(&f.JobID, &extractedAt, &state, &city, &f.RoleFamily, &f.Seniority,
			&f.IsRemote, &yoe, &skills, &f.SkillsCount, &topSkills)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting features %s: %w", jobID, err)
	}

	if f.ExtractedAt, err = parseTime(extractedAt); err != nil {
		return nil, fmt.Errorf("parsing extracted_at for %s: %w", jobID, err)
	}
	f.State = stringPtr(state)
	f.City = stringPtr(city)
	f.YearsExperienceMin = intPtr(yoe)
	if err := json.Unmarshal([]byte(skills), &f.Skills); err != nil {
		return nil, fmt.Errorf("unmarshaling skills for %s: %w", jobID, err)
	}
	if err := json.Unmarshal([]byte(topSkills), &f.TopSkills); err != nil {
		return nil, fmt.Errorf("unmarshaling top skills for %s: %w", jobID, err)
	}
	return &f, nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
