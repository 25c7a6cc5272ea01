package bot

// =============================================================================
// General messages
// =============================================================================

const (
	MsgWelcome = `
		*生存協定已啟動*
		解決你喺感情上婚姻上嘅所有危機!!

		我哋嘅 AI 兄弟會掃描你嘅相，搵出所有致命「瀨嘢位」，幫你準備好最強求生劇本。
		直接send相（或者相片檔案）過嚟就得。`
	MsgUnexpectedErr = `出咗意外：%s`
	MsgNotAnImage    = "兄弟，呢個唔係相。send相片或者圖片檔案過嚟。"
	MsgDownloadError = "相片下載失敗，請再send一次。"
)

// =============================================================================
// Scan messages
// =============================================================================

const (
	MsgScanning           = "掃描中…"
	MsgReportFailed       = "報告生成失敗，請再嘗試。"
	MsgConfigurationError = "兄弟，仲係讀唔到粒 Key。請喺設定檔加入 `GEMINI_API_KEY`（或者 `OPENAI_API_KEY`），然後重新啟動。"
	MsgScanDeleted        = "證據已永久消除。"
	MsgScanNotFound       = "呢張相已經唔喺度。"
	MsgNoScans            = "仲未有嘢要處理。send相開始掃描。"
	MsgListHeader         = "*影像流*（最新喺最上）"
	MsgStats              = "已掃描：%d\n高危：%d"
	MsgStillScanning      = "仲掃描緊，等陣。"
)

// =============================================================================
// Report sections
// =============================================================================

const (
	MsgReportTitle    = "*風險報告分析*"
	MsgRiskSpotsTitle = "*瀨嘢位分析*"
	MsgScriptsTitle   = "*求生劇本*"
	MsgExcusesTitle   = "*合理路過理由*"
	MsgActionTitle    = "*建議行動*"
)

// =============================================================================
// Buttons
// =============================================================================

const (
	BtnView   = "🔍 睇報告"
	BtnDelete = "🗑 永久消除此證據"
)
