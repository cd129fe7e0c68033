package profile

import "strings"

// Profile captures one UI revision: its branding text and the fixed prompt material.
type Profile struct {
	ID             string `json:"id" toml:"id"`
	PageTitle      string `json:"pageTitle" toml:"page_title"`
	Heading        string `json:"heading" toml:"heading"`
	LockTitle      string `json:"lockTitle" toml:"lock_title"`
	LockHint       string `json:"lockHint" toml:"lock_hint"`
	Placeholder    string `json:"placeholder" toml:"placeholder"`
	SpinnerText    string `json:"spinnerText" toml:"spinner_text"`
	SearchLabel    string `json:"searchLabel" toml:"search_label"`
	ClearLabel     string `json:"clearLabel" toml:"clear_label"`
	HardwareStatus string `json:"hardwareStatus" toml:"hardware_status"`
	Accent         string `json:"accent,omitempty" toml:"accent"`

	SystemPrompt     string `json:"-" toml:"system_prompt"`
	QueryTemplate    string `json:"-" toml:"query_template"`
	ContextTemplate  string `json:"-" toml:"context_template"`
	InstructionLabel string `json:"-" toml:"instruction_label"`
	Cursor           string `json:"cursor" toml:"cursor"`
	ErrorPrefix      string `json:"errorPrefix" toml:"error_prefix"`
	InvalidKeyText   string `json:"invalidKeyText" toml:"invalid_key_text"`
	SearchDefault    bool   `json:"searchDefault" toml:"search_default"`
}

const (
	DefaultCursor           = "▌"
	DefaultQueryTemplate    = "latest news about {query}"
	DefaultContextTemplate  = "\n【即時參考資訊】：{context}\n"
	DefaultInstructionLabel = "User Instruction: "
	DefaultErrorPrefix      = "🛰️ 連線異常："
	DefaultInvalidKeyText   = "Invalid Key."
)

const twSystemPrompt = "你是由 yangyanmao0707 開發的專業 AI 助手。\n" +
	"1. 必須完全使用臺灣繁體中文回應。\n" +
	"2. 嚴禁使用大陸用語（例如：視頻、軟件、打印）。\n" +
	"3. 語氣保持專業、簡潔、科學化。"

// WithDefaults fills every empty field that has a sensible fallback.
func (p Profile) WithDefaults() Profile {
	p.ID = strings.TrimSpace(p.ID)
	if p.PageTitle == "" {
		p.PageTitle = "Terminal"
	}
	if p.Heading == "" {
		p.Heading = p.PageTitle
	}
	if p.Placeholder == "" {
		p.Placeholder = "Waiting for instruction..."
	}
	if p.Cursor == "" {
		p.Cursor = DefaultCursor
	}
	if p.QueryTemplate == "" {
		p.QueryTemplate = DefaultQueryTemplate
	}
	if p.ContextTemplate == "" {
		p.ContextTemplate = DefaultContextTemplate
	}
	if p.InstructionLabel == "" {
		p.InstructionLabel = DefaultInstructionLabel
	}
	if p.ErrorPrefix == "" {
		p.ErrorPrefix = DefaultErrorPrefix
	}
	if p.InvalidKeyText == "" {
		p.InvalidKeyText = DefaultInvalidKeyText
	}
	if p.SearchLabel == "" {
		p.SearchLabel = "🌐 全球連網模式"
	}
	if p.ClearLabel == "" {
		p.ClearLabel = "🗑️ CLEAR MEMORY"
	}
	return p
}

// Seed returns the three built-in revisions. They differ only in presentation text.
func Seed() []Profile {
	seeds := []Profile{
		{
			ID:             "v1",
			PageTitle:      "Terminal | System 12B",
			Heading:        "TERMINAL_LOG_v1.0",
			LockTitle:      "SYSTEM ENCRYPTION",
			LockHint:       "此連線受端對端加密保護，請輸入驗證金鑰",
			SpinnerText:    "📡 正在擷取衛星數據並進行 12B 運算...",
			HardwareStatus: "GPU: RTX 4060 8GB\nCore: Mistral NeMo 12B\nType: Local Edge Computing",
			Accent:         "#444444",
			SystemPrompt:   twSystemPrompt,
			SearchDefault:  true,
		},
		{
			ID:             "v2",
			PageTitle:      "Terminal | Edge Node",
			Heading:        "TERMINAL_LOG_v2.0",
			LockTitle:      "SECURE CHANNEL",
			LockHint:       "請輸入存取金鑰以建立安全連線",
			SpinnerText:    "📡 正在同步即時資料並進行本地運算...",
			HardwareStatus: "GPU: RTX 4060 8GB\nCore: Mistral NeMo 12B\nMode: Offline-first Inference",
			Accent:         "#2f6f4f",
			SystemPrompt:   twSystemPrompt,
			SearchDefault:  true,
		},
		{
			ID:             "v3",
			PageTitle:      "Terminal | Quiet Mode",
			Heading:        "TERMINAL_LOG_v3.0",
			LockTitle:      "ACCESS CONTROL",
			LockHint:       "本終端僅限授權人員使用",
			SpinnerText:    "⏳ 運算中，請稍候...",
			HardwareStatus: "GPU: RTX 4060 8GB\nCore: Mistral NeMo 12B\nType: Local Edge Computing",
			Accent:         "#5b4a8b",
			SystemPrompt:   twSystemPrompt,
			SearchDefault:  false,
		},
	}
	for i := range seeds {
		seeds[i] = seeds[i].WithDefaults()
	}
	return seeds
}
