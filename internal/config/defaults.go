package config

import "time"

// Default values for configuration
const (
	DefaultLogLevel = "info"

	DefaultDatabaseDSN = "storage.db"

	DefaultHTTPAddr            = ":8080"
	DefaultHTTPReadTimeout     = 15 * time.Second
	DefaultHTTPWriteTimeout    = 30 * time.Second
	DefaultHTTPShutdownTimeout = 10 * time.Second

	DefaultHolidaysBaseURL  = "https://www.calend.ru/day/"
	DefaultHolidaysTimeout  = 20 * time.Second
	DefaultHolidaysMemoSize = 64
	DefaultHolidaysMemoTTL  = 6 * time.Hour
	DefaultHolidaysMinYear  = 2010

	DefaultImagesProvider      = "search"
	DefaultImagesCacheDir      = "cache"
	DefaultImagesQueryFill     = 5
	DefaultImagesPrewarmFill   = 20
	DefaultImagesTimeout       = 2 * time.Minute
	DefaultImagesRatePerMinute = 30
	DefaultSearchEndpoint      = "https://www.googleapis.com/customsearch/v1"
	DefaultGeminiModel         = "imagen-3.0-generate-002"
	DefaultOpenAIBaseURL       = "https://api.openai.com/v1"
	DefaultOpenAIModel         = "dall-e-3"
	DefaultOpenAISize          = "1024x1024"

	DefaultCardStickersDir = "img"

	DefaultQueriesArtifactsDir   = "queries"
	DefaultQueriesMaxRetries     = 5
	DefaultQueriesWorkers        = 4
	DefaultQueriesAttemptTimeout = 5 * time.Minute
	DefaultQueriesRetryBackoff   = 2 * time.Second

	DefaultSchedulerTimezone    = "Europe/Kyiv"
	DefaultSchedulerWindowStart = 9
	DefaultSchedulerWindowEnd   = 18
	DefaultSchedulerRetryDelay  = 5 * time.Minute
	DefaultSchedulerRunTimeout  = 10 * time.Minute
)

// Default bot messages
var DefaultMessages = MessagesConfig{
	Welcome:         "Привет! Теперь каждый день я буду сообщать тебе о праздниках! Если захочешь отключить рассылку - напиши /off",
	Disabled:        "Отключил рассылку!",
	AlreadyDisabled: "Рассылка уже отключена!",
	Wait:            "⏳ Ожидайте...",
	GeneralError:    "❌ Не получилось подготовить открытку, попробуйте позже.",
}

// DefaultTasks are the maintenance tasks registered by internal/bot/tasks.
var DefaultTasks = map[string]TaskConfig{
	"holiday_prewarm": {Enabled: true, Schedule: "0 2 * * *"},
	"sql_maintenance": {Enabled: true, Schedule: "30 3 * * 0"},
}
