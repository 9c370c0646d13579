package reminder_send

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/yungbote/studyforge-backend/internal/jobs/runtime"
)

// Run re-checks which skills are still due before notifying; reviews done
// since the sweep drop out of the reminder.
func (p *Pipeline) Run(jc *runtime.Context, in runtime.ReminderSend) (any, error) {
	if in.UserID == uuid.Nil {
		return nil, runtime.Permanent(fmt.Errorf("missing user_id"))
	}

	due, err := p.mastery.ListDue(jc.DBC(), in.UserID, p.now())
	if err != nil {
		return nil, fmt.Errorf("list due: %w", err)
	}
	stillDue := make(map[string]bool, len(due))
	for _, st := range due {
		stillDue[st.SkillID] = true
	}
	skills := make([]string, 0, len(in.SkillIDs))
	for _, id := range in.SkillIDs {
		if stillDue[id] {
			skills = append(skills, id)
			delete(stillDue, id)
		}
	}
	if len(in.SkillIDs) == 0 {
		for id := range stillDue {
			skills = append(skills, id)
		}
		sort.Strings(skills)
	}

	if len(skills) == 0 {
		return map[string]any{"sent": false, "skills": 0}, nil
	}
	if err := p.notify.ReviewReminder(in.UserID, skills); err != nil {
		return nil, fmt.Errorf("publish reminder: %w", err)
	}
	return map[string]any{"sent": true, "skills": len(skills), "skill_ids": skills}, nil
}
