// Package bot routes inbound Telegram updates: it classifies each
// message, dispatches commands, runs the conversational flow through
// the model, and keeps per chat follow up state.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/justduck/relaybot/internal/ai"
	"github.com/justduck/relaybot/internal/memory"
	"github.com/justduck/relaybot/internal/observability"
	"github.com/justduck/relaybot/internal/search"
	"github.com/justduck/relaybot/internal/telegram"
	"github.com/justduck/relaybot/internal/tts"
	"github.com/justduck/relaybot/internal/users"
	"github.com/justduck/relaybot/internal/weather"
)

// Sender is the outbound side of the Telegram client.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts telegram.SendOptions) error
	SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) error
	SendVoice(ctx context.Context, chatID int64, audio []byte, filename string) error
	SendChatAction(ctx context.Context, chatID int64, action string) error
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

// Searcher runs the web and image search chains.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]search.Result, error)
	SearchImages(ctx context.Context, query string, limit int) ([]search.Image, error)
	WebConfigured() bool
	ImagesConfigured() bool
}

// WeatherProvider fetches conditions and resolves place names.
type WeatherProvider interface {
	FetchCurrent(ctx context.Context, lat, lon float64) (weather.Current, error)
	FetchForecast(ctx context.Context, lat, lon float64, days int) ([]weather.Day, error)
	Geocode(ctx context.Context, city string) (weather.Place, error)
	ReverseGeocode(ctx context.Context, lat, lon float64) (weather.Place, error)
}

// Synthesizer turns short text into voice audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// DailyRunner triggers one daily weather notification sweep.
type DailyRunner interface {
	Run(ctx context.Context) (success, failed int)
}

type RouterConfig struct {
	AITimeout time.Duration
	// MaxImages caps photos sent per image request.
	MaxImages int
	// BroadcastDelay spaces consecutive broadcast sends.
	BroadcastDelay time.Duration
}

// Router is the per update dispatcher. All handler methods are safe
// for concurrent use.
type Router struct {
	cfg      RouterConfig
	sender   Sender
	gen      ai.Generator
	memory   memory.Store
	users    users.Registry
	searcher Searcher
	weather  WeatherProvider
	speech   Synthesizer
	daily    DailyRunner
	pending  *PendingTracker
	metrics  *observability.Metrics
	logger   *log.Logger
	now      func() time.Time
}

type RouterDeps struct {
	Sender   Sender
	AI       ai.Generator
	Memory   memory.Store
	Users    users.Registry
	Searcher Searcher
	Weather  WeatherProvider
	Speech   Synthesizer
	Daily    DailyRunner
	Pending  *PendingTracker
	Metrics  *observability.Metrics
	Logger   *log.Logger
}

func NewRouter(cfg RouterConfig, deps RouterDeps) *Router {
	if cfg.AITimeout <= 0 {
		cfg.AITimeout = 45 * time.Second
	}
	if cfg.MaxImages <= 0 {
		cfg.MaxImages = 3
	}
	if deps.Pending == nil {
		deps.Pending = NewPendingTracker(10 * time.Minute)
	}
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	return &Router{
		cfg:      cfg,
		sender:   deps.Sender,
		gen:      deps.AI,
		memory:   deps.Memory,
		users:    deps.Users,
		searcher: deps.Searcher,
		weather:  deps.Weather,
		speech:   deps.Speech,
		daily:    deps.Daily,
		pending:  deps.Pending,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetDailyRunner breaks the construction cycle between the router and
// the notifier, which needs the sender the router also uses.
func (r *Router) SetDailyRunner(d DailyRunner) { r.daily = d }

// HandleUpdate processes one webhook update. Errors are handled by
// replying to the user; the returned error is for logging only.
func (r *Router) HandleUpdate(ctx context.Context, upd *telegram.Update) error {
	if upd == nil {
		r.countUpdate("ignored")
		return nil
	}
	msg := upd.IncomingMessage()
	if msg == nil || msg.From == nil {
		r.countUpdate("ignored")
		return nil
	}

	// Messages from bots, including our own echoes, never enter the
	// pipeline.
	if msg.From.IsBot {
		r.countUpdate("bot_sender")
		return nil
	}
	r.countUpdate("accepted")

	profile, err := r.users.GetOrCreate(ctx, msg.From.ID, users.Seed{
		Username:  msg.From.Username,
		FirstName: msg.From.FirstName,
		LastName:  msg.From.LastName,
	})
	if err != nil {
		r.logger.Printf("bot: register user %d: %v", msg.From.ID, err)
		return r.sender.SendMessage(ctx, msg.Chat.ID, msgAIUnavailable, telegram.SendOptions{})
	}

	intent := Classify(msg)
	if r.metrics != nil {
		r.metrics.Intents.WithLabelValues(string(intent.Kind)).Inc()
	}

	if kind, ok := r.pending.Peek(msg.Chat.ID); ok && kind == PendingLocation {
		if handled, err := r.handlePendingLocation(ctx, msg, profile, intent); handled {
			return err
		}
	}

	switch intent.Kind {
	case IntentCommand:
		return r.handleCommand(ctx, msg, profile, intent)
	case IntentLocation:
		return r.saveSharedLocation(ctx, msg, profile, true)
	case IntentCancel:
		return r.sender.SendMessage(ctx, msg.Chat.ID, msgLocationCancelled,
			telegram.SendOptions{ReplyMarkup: telegram.RemoveKeyboard()})
	case IntentGreeting:
		reply := GreetingReply(profile.FirstName)
		r.remember(ctx, msg.Chat.ID, intent.Text, reply)
		return r.sender.SendMessage(ctx, msg.Chat.ID, reply, telegram.SendOptions{})
	case IntentOrigin:
		reply := OriginReply()
		r.remember(ctx, msg.Chat.ID, intent.Text, reply)
		return r.sender.SendMessage(ctx, msg.Chat.ID, reply, telegram.SendOptions{})
	case IntentPhoto:
		return r.handlePhoto(ctx, msg)
	case IntentVoice:
		return r.sender.SendMessage(ctx, msg.Chat.ID, msgVoiceNotSupport, telegram.SendOptions{})
	default:
		return r.handleChat(ctx, msg.Chat.ID, intent.Text, chatOptions{
			Search: intent.NeedsSearch,
			Images: intent.NeedsImages,
		})
	}
}

// handlePendingLocation consumes messages that answer an earlier
// location prompt. It reports whether the message was consumed.
func (r *Router) handlePendingLocation(ctx context.Context, msg *telegram.Message, profile users.Profile, intent Intent) (bool, error) {
	switch intent.Kind {
	case IntentLocation:
		r.pending.Clear(msg.Chat.ID)
		return true, r.saveSharedLocation(ctx, msg, profile, true)
	case IntentCancel:
		r.pending.Clear(msg.Chat.ID)
		return true, r.sender.SendMessage(ctx, msg.Chat.ID, msgLocationCancelled,
			telegram.SendOptions{ReplyMarkup: telegram.RemoveKeyboard()})
	case IntentChat, IntentGreeting:
		// A typed city name also answers the prompt.
		if r.weather == nil || strings.TrimSpace(intent.Text) == "" {
			return false, nil
		}
		place, err := r.weather.Geocode(ctx, intent.Text)
		if err != nil {
			return false, nil
		}
		r.pending.Clear(msg.Chat.ID)
		if err := r.saveLocation(ctx, msg.From.ID, place); err != nil {
			r.logger.Printf("bot: save location for %d: %v", msg.From.ID, err)
		}
		return true, r.replyCurrentWeather(ctx, msg.Chat.ID, place, telegram.RemoveKeyboard())
	default:
		return false, nil
	}
}

func (r *Router) saveSharedLocation(ctx context.Context, msg *telegram.Message, profile users.Profile, showWeather bool) error {
	loc := msg.Location
	place := weather.Place{Latitude: loc.Latitude, Longitude: loc.Longitude}
	if r.weather != nil {
		if resolved, err := r.weather.ReverseGeocode(ctx, loc.Latitude, loc.Longitude); err == nil {
			place = resolved
		} else {
			r.logger.Printf("bot: reverse geocode: %v", err)
		}
	}
	if err := r.saveLocation(ctx, msg.From.ID, place); err != nil {
		r.logger.Printf("bot: save location for %d: %v", msg.From.ID, err)
	}
	if showWeather && r.weather != nil {
		if err := r.sender.SendMessage(ctx, msg.Chat.ID, msgLocationSaved, telegram.SendOptions{}); err != nil {
			return err
		}
		return r.replyCurrentWeather(ctx, msg.Chat.ID, place, telegram.RemoveKeyboard())
	}
	return r.sender.SendMessage(ctx, msg.Chat.ID, msgLocationSaved,
		telegram.SendOptions{ReplyMarkup: telegram.RemoveKeyboard()})
}

func (r *Router) saveLocation(ctx context.Context, userID int64, place weather.Place) error {
	loc := &users.Location{
		Latitude:  place.Latitude,
		Longitude: place.Longitude,
		City:      place.Name,
		Country:   place.Country,
		UpdatedAt: r.now(),
	}
	_, err := r.users.Update(ctx, userID, users.Update{Location: loc})
	return err
}

func (r *Router) replyCurrentWeather(ctx context.Context, chatID int64, place weather.Place, markup any) error {
	cur, err := r.weather.FetchCurrent(ctx, place.Latitude, place.Longitude)
	if err != nil {
		r.logger.Printf("bot: fetch weather: %v", err)
		return r.sender.SendMessage(ctx, chatID, msgWeatherUnavailable, telegram.SendOptions{ReplyMarkup: markup})
	}
	name := place.Name
	if name == "" {
		name = fmt.Sprintf("%.3f, %.3f", place.Latitude, place.Longitude)
	}
	return r.sender.SendMessage(ctx, chatID, weather.FormatCurrent(name, cur),
		telegram.SendOptions{ReplyMarkup: markup})
}

// chatOptions adjusts one conversational turn.
type chatOptions struct {
	// Voice follows the text reply with an audio rendering.
	Voice bool
	// Search folds fresh web results into the model prompt.
	Search bool
	// Images sends matching photos after the reply.
	Images bool
}

// handleChat is the default conversational flow: prior turns plus the
// new message go to the model under a timeout, the reply is stored
// and delivered. Keyword enrichment runs first, so a message asking
// for news or pictures still gets a model reply built on them.
func (r *Router) handleChat(ctx context.Context, chatID int64, text string, opts chatOptions) error {
	_ = r.sender.SendChatAction(ctx, chatID, "typing")

	var digest string
	if opts.Search && r.searcher != nil && r.searcher.WebConfigured() {
		if results, err := r.searcher.Search(ctx, text, 5); err == nil {
			digest = search.Digest(results)
		} else {
			r.logger.Printf("bot: search %q: %v", text, err)
		}
	}
	var images []search.Image
	if opts.Images && r.searcher != nil && r.searcher.ImagesConfigured() {
		if found, err := r.searcher.SearchImages(ctx, text, r.cfg.MaxImages); err == nil {
			images = found
		} else {
			r.logger.Printf("bot: image search %q: %v", text, err)
		}
	}
	if notice := progressNotice(text, digest != ""); notice != "" {
		_ = r.sender.SendMessage(ctx, chatID, notice, telegram.SendOptions{})
	}

	prompt := text
	if digest != "" {
		prompt = SearchPrompt(text, digest)
	}
	reply, err := r.generate(ctx, ai.Request{
		System:   SystemPrompt(r.now()),
		History:  r.recall(ctx, chatID),
		UserText: prompt,
	})
	if err != nil {
		if digest != "" {
			// The raw digest still answers the question.
			return r.sender.SendMessage(ctx, chatID, "🔎 Kết quả tìm kiếm:\n\n"+digest, telegram.SendOptions{})
		}
		return r.sender.SendMessage(ctx, chatID, degradedReply(err), telegram.SendOptions{})
	}

	r.remember(ctx, chatID, text, reply)
	if err := r.sender.SendMessage(ctx, chatID, reply, telegram.SendOptions{}); err != nil {
		return err
	}
	if opts.Voice {
		if err := r.sendVoiceReply(ctx, chatID, reply); err != nil {
			return err
		}
	}
	r.sendFoundImages(ctx, chatID, images)
	return nil
}

// progressNotice picks the wait message for slow turns.
func progressNotice(text string, searched bool) string {
	if searched {
		return msgThinkingSearch
	}
	if isComplexRequest(text) {
		return msgThinkingLong
	}
	return ""
}

// sendVoiceReply follows a delivered text reply with an audio
// rendering. Unsuitable or failed synthesis explains itself instead
// of staying silent.
func (r *Router) sendVoiceReply(ctx context.Context, chatID int64, reply string) error {
	if r.speech == nil {
		return nil
	}
	_ = r.sender.SendChatAction(ctx, chatID, "record_voice")
	audio, err := r.speech.Synthesize(ctx, reply)
	if err != nil {
		r.logger.Printf("bot: synthesize reply: %v", err)
		if errors.Is(err, tts.ErrTextTooLong) {
			return r.sender.SendMessage(ctx, chatID, msgVoiceTooLong, telegram.SendOptions{})
		}
		return r.sender.SendMessage(ctx, chatID, msgVoiceFailed, telegram.SendOptions{})
	}
	return r.sender.SendVoice(ctx, chatID, audio, "reply.mp3")
}

func (r *Router) sendFoundImages(ctx context.Context, chatID int64, images []search.Image) {
	if len(images) > r.cfg.MaxImages {
		images = images[:r.cfg.MaxImages]
	}
	for _, img := range images {
		caption := ""
		if img.Credit != "" {
			caption = fmt.Sprintf("📷 %s (%s)", img.Credit, img.Provider)
		}
		if err := r.sender.SendPhoto(ctx, chatID, img.URL, caption); err != nil {
			r.logger.Printf("bot: send photo: %v", err)
		}
	}
}

// handleSearch serves the explicit /search command, where a provider
// failure is reported instead of silently degrading to plain chat.
func (r *Router) handleSearch(ctx context.Context, chatID int64, query string) error {
	if r.searcher == nil || !r.searcher.WebConfigured() {
		return r.sender.SendMessage(ctx, chatID, msgSearchUnavailable, telegram.SendOptions{})
	}
	_ = r.sender.SendChatAction(ctx, chatID, "typing")

	results, err := r.searcher.Search(ctx, query, 5)
	if err != nil {
		r.logger.Printf("bot: search %q: %v", query, err)
		return r.sender.SendMessage(ctx, chatID, msgSearchFailed, telegram.SendOptions{})
	}
	digest := search.Digest(results)
	if digest == "" {
		return r.handleChat(ctx, chatID, query, chatOptions{})
	}
	_ = r.sender.SendMessage(ctx, chatID, msgThinkingSearch, telegram.SendOptions{})

	reply, err := r.generate(ctx, ai.Request{
		System:   SystemPrompt(r.now()),
		History:  r.recall(ctx, chatID),
		UserText: SearchPrompt(query, digest),
	})
	if err != nil {
		// The raw digest still answers the question.
		return r.sender.SendMessage(ctx, chatID, "🔎 Kết quả tìm kiếm:\n\n"+digest, telegram.SendOptions{})
	}
	r.remember(ctx, chatID, query, reply)
	return r.sender.SendMessage(ctx, chatID, reply, telegram.SendOptions{})
}

// handleImages serves the explicit /image command, sending up to
// MaxImages photos without a model turn.
func (r *Router) handleImages(ctx context.Context, chatID int64, query string) error {
	if r.searcher == nil || !r.searcher.ImagesConfigured() {
		return r.sender.SendMessage(ctx, chatID, msgImageUnavailable, telegram.SendOptions{})
	}
	if err := r.sender.SendMessage(ctx, chatID, msgImageSearching, telegram.SendOptions{}); err != nil {
		return err
	}
	_ = r.sender.SendChatAction(ctx, chatID, "upload_photo")

	images, err := r.searcher.SearchImages(ctx, query, r.cfg.MaxImages)
	if err != nil {
		r.logger.Printf("bot: image search %q: %v", query, err)
		return r.sender.SendMessage(ctx, chatID, msgImageNotFound, telegram.SendOptions{})
	}
	if len(images) == 0 {
		return r.sender.SendMessage(ctx, chatID, msgImageNotFound, telegram.SendOptions{})
	}
	if len(images) > r.cfg.MaxImages {
		images = images[:r.cfg.MaxImages]
	}
	for _, img := range images {
		caption := ""
		if img.Credit != "" {
			caption = fmt.Sprintf("📷 %s (%s)", img.Credit, img.Provider)
		}
		if err := r.sender.SendPhoto(ctx, chatID, img.URL, caption); err != nil {
			r.logger.Printf("bot: send photo: %v", err)
		}
	}
	return nil
}

// handlePhoto downloads the largest size and asks the model about it.
func (r *Router) handlePhoto(ctx context.Context, msg *telegram.Message) error {
	photo, ok := msg.LargestPhoto()
	if !ok {
		return nil
	}
	_ = r.sender.SendChatAction(ctx, msg.Chat.ID, "typing")
	_ = r.sender.SendMessage(ctx, msg.Chat.ID, msgThinkingPhoto, telegram.SendOptions{})

	data, err := r.sender.DownloadFile(ctx, photo.FileID)
	if err != nil {
		r.logger.Printf("bot: download photo: %v", err)
		return r.sender.SendMessage(ctx, msg.Chat.ID, msgAIUnavailable, telegram.SendOptions{})
	}

	prompt := PhotoPrompt(msg.Caption)
	reply, err := r.generate(ctx, ai.Request{
		System:   SystemPrompt(r.now()),
		History:  r.recall(ctx, msg.Chat.ID),
		UserText: prompt,
		Images:   []ai.ImagePart{{MIMEType: http.DetectContentType(data), Data: data}},
	})
	if err != nil {
		return r.sender.SendMessage(ctx, msg.Chat.ID, degradedReply(err), telegram.SendOptions{})
	}
	r.remember(ctx, msg.Chat.ID, "[ảnh] "+prompt, reply)
	return r.sender.SendMessage(ctx, msg.Chat.ID, reply, telegram.SendOptions{})
}

func (r *Router) generate(ctx context.Context, req ai.Request) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, r.cfg.AITimeout)
	defer cancel()
	reply, err := r.gen.Generate(genCtx, req)
	if err != nil {
		r.logger.Printf("bot: generate: %v", err)
		return "", err
	}
	return reply, nil
}

// recall loads the retained window. A storage failure degrades to an
// empty history rather than failing the turn.
func (r *Router) recall(ctx context.Context, chatID int64) []ai.Turn {
	records, err := r.memory.Read(ctx, chatID)
	if err != nil {
		r.logger.Printf("bot: read memory for %d: %v", chatID, err)
		return nil
	}
	turns := make([]ai.Turn, 0, len(records))
	for _, rec := range records {
		role := ai.RoleUser
		if rec.Role == memory.RoleAssistant {
			role = ai.RoleModel
		}
		turns = append(turns, ai.Turn{Role: role, Text: rec.Content})
	}
	return turns
}

func (r *Router) remember(ctx context.Context, chatID int64, userText, reply string) {
	err := r.memory.Append(ctx, chatID, []memory.TurnRecord{
		{Role: memory.RoleUser, Content: userText},
		{Role: memory.RoleAssistant, Content: reply},
	})
	if err != nil {
		r.logger.Printf("bot: append memory for %d: %v", chatID, err)
	}
}

func (r *Router) countUpdate(outcome string) {
	if r.metrics != nil {
		r.metrics.WebhookUpdates.WithLabelValues(outcome).Inc()
	}
}

func degradedReply(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return msgAITimeout
	}
	return msgAIUnavailable
}
