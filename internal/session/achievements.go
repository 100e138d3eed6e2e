package session

const (
	AchievementFirstHack      = "first_hack"
	AchievementSpellCaster    = "spell_caster"
	AchievementVisualAnalyzer = "visual_analyzer"
	AchievementLevel5         = "level_5"
	AchievementShadowMaster   = "shadow_master"
)

// AchievementDefinition is a static catalogue entry
type AchievementDefinition struct {
	ID          string
	Title       string
	Description string
	Icon        string
}

// Catalog is the fixed set of achievements a user can unlock
var Catalog = []AchievementDefinition{
	{ID: AchievementFirstHack, Title: "初次入侵", Description: "第一次成功用德语进行交流。", Icon: "🔓"},
	{ID: AchievementSpellCaster, Title: "咒语师", Description: "利用“秘密咒语”修正并提升了德语技能。", Icon: "🪄"},
	{ID: AchievementVisualAnalyzer, Title: "视觉分析官", Description: "成功分析了图片或文档资料。", Icon: "👁️"},
	{ID: AchievementLevel5, Title: "代码跑者", Description: "黑客等级达到了 5 级。", Icon: "🏃"},
	{ID: AchievementShadowMaster, Title: "影子大师", Description: "在学习助手中完成了一次高质量跟读。", Icon: "🎤"},
}

// IsKnownAchievement reports whether id is in the catalogue
func IsKnownAchievement(id string) bool {
	for _, def := range Catalog {
		if def.ID == id {
			return true
		}
	}
	return false
}

// Achievement is a catalogue entry joined with the time it was unlocked.
// The list of these is stored per user next to, not inside, the Session.
type Achievement struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	UnlockedAt  *int64 `json:"unlockedAt"`
}

// NewAchievements returns the catalogue with nothing unlocked
func NewAchievements() []Achievement {
	out := make([]Achievement, 0, len(Catalog))
	for _, def := range Catalog {
		out = append(out, Achievement{
			ID:          def.ID,
			Title:       def.Title,
			Description: def.Description,
			Icon:        def.Icon,
		})
	}
	return out
}

// MarkUnlocked stamps at on every record whose id is in ids and that has no
// unlock time yet. Catalogue entries missing from records are added, so a
// record written by an older catalogue catches up.
func MarkUnlocked(records []Achievement, ids []string, at int64) []Achievement {
	out := make([]Achievement, len(records))
	copy(out, records)

	present := make(map[string]int, len(out))
	for i, rec := range out {
		present[rec.ID] = i
	}
	for _, def := range Catalog {
		if _, ok := present[def.ID]; !ok {
			present[def.ID] = len(out)
			out = append(out, Achievement{ID: def.ID, Title: def.Title, Description: def.Description, Icon: def.Icon})
		}
	}

	for _, id := range ids {
		i, ok := present[id]
		if !ok || out[i].UnlockedAt != nil {
			continue
		}
		stamp := at
		out[i].UnlockedAt = &stamp
	}
	return out
}
