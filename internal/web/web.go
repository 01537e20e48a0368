// Package web はサーバーレンダリングのページを提供する。
// ブラウザから直接使う画面で、JSON APIと同じサービス層を共用する。
package web

import (
	"context"
	"embed"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/fukushu/internal/model"
	"github.com/hitoshi/fukushu/internal/review"
)

//go:embed templates/*.html
var templateFS embed.FS

// ReviewServiceInterface はページハンドラーが必要とするサービスインターフェース。
type ReviewServiceInterface interface {
	Add(ctx context.Context, in review.AddInput) (*model.ReviewItem, error)
	Get(ctx context.Context, id string) (*model.ReviewItem, error)
	RecordOutcome(ctx context.Context, id, outcome string) (*model.ReviewItem, error)
	OverrideDueDate(ctx context.Context, id, date string) (*model.ReviewItem, error)
	EditFields(ctx context.Context, id string, in review.EditInput) (*model.ReviewItem, error)
	Delete(ctx context.Context, id string) error
	ListDue(ctx context.Context, asOf time.Time) ([]model.CategoryGroup, error)
	ListAll(ctx context.Context) ([]model.CategoryGroup, error)
	Today() time.Time
}

// Handler はページ一式のHTTPハンドラー。
type Handler struct {
	service   ReviewServiceInterface
	logger    *slog.Logger
	templates *template.Template
}

// NewHandler は埋め込みテンプレートをパースしてHandlerを生成する。
func NewHandler(service ReviewServiceInterface, logger *slog.Logger) (*Handler, error) {
	funcs := template.FuncMap{
		"dateFmt": func(t time.Time) string { return t.Format(model.DateLayout) },
	}
	tmpl, err := template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("テンプレートのパースに失敗しました: %w", err)
	}
	return &Handler{
		service:   service,
		logger:    logger,
		templates: tmpl,
	}, nil
}

// Routes はページのルーティングを設定したchi.Routerを返す。
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/", h.Index)
	r.Get("/add", h.AddForm)
	r.Post("/add", h.AddItem)
	r.Post("/review/{id}", h.ReviewItem)
	r.Post("/update_date/{id}", h.UpdateDate)
	r.Post("/delete/{id}", h.DeleteItem)
	r.Get("/edit/{id}", h.EditForm)
	r.Post("/edit/{id}", h.EditItem)
	r.Get("/bookmarklet", h.Bookmarklet)

	return r
}

// flash はページ上部に1回だけ表示するメッセージ。
type flash struct {
	Category string // success, info, danger
	Message  string
}

const flashCookieName = "fukushu_flash"

// setFlash はリダイレクト先で表示するメッセージをクッキーに積む。
// 日本語メッセージをクッキー値に収めるためbase64でエンコードする。
func setFlash(w http.ResponseWriter, category, message string) {
	value := base64.URLEncoding.EncodeToString([]byte(category + "|" + message))
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash はフラッシュメッセージを取り出し、クッキーを消す。
func popFlash(w http.ResponseWriter, r *http.Request) *flash {
	c, err := r.Cookie(flashCookieName)
	if err != nil {
		return nil
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	decoded, err := base64.URLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	category, message, found := strings.Cut(string(decoded), "|")
	if !found {
		return nil
	}
	return &flash{Category: category, Message: message}
}

// indexData はメインページのテンプレートデータ。
type indexData struct {
	Flash     *flash
	Today     string
	DueGroups []model.CategoryGroup
	AllGroups []model.CategoryGroup
	DueCount  int
}

// Index はメインページを表示する。
// 期限到来の項目と全項目をそれぞれカテゴリごとにまとめて出す。
// GET /
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	today := h.service.Today()

	dueGroups, err := h.service.ListDue(r.Context(), today)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	allGroups, err := h.service.ListAll(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	count := 0
	for _, g := range dueGroups {
		count += len(g.Items)
	}

	h.render(w, "index.html", indexData{
		Flash:     popFlash(w, r),
		Today:     today.Format(model.DateLayout),
		DueGroups: dueGroups,
		AllGroups: allGroups,
		DueCount:  count,
	})
}

// addFormData は追加フォームのテンプレートデータ。
type addFormData struct {
	Flash        *flash
	InitialTopic string
	InitialURL   string
	Bookmarklet  bool
}

// AddForm は追加フォームを表示する。
// ブックマークレット経由の場合はtitle/urlクエリパラメータがフォームに事前入力される。
// GET /add
func (h *Handler) AddForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, "add_form.html", addFormData{
		Flash:        popFlash(w, r),
		InitialTopic: r.URL.Query().Get("title"),
		InitialURL:   r.URL.Query().Get("url"),
		Bookmarklet:  r.URL.Query().Has("bookmarklet"),
	})
}

// AddItem はフォームからの項目追加を処理する。
// ブックマークレット経由の場合は保存後にウィンドウを閉じるスクリプトを返す。
// POST /add
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		setFlash(w, "danger", "フォームの解析に失敗しました。")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	assumedFamiliar := r.PostFormValue("initial_confidence") == "good"

	item, err := h.service.Add(r.Context(), review.AddInput{
		Topic:           r.PostFormValue("topic"),
		URL:             r.PostFormValue("url"),
		Category:        r.PostFormValue("category"),
		AssumedFamiliar: assumedFamiliar,
	})
	if err != nil {
		h.flashError(w, err)
		http.Redirect(w, r, "/add", http.StatusSeeOther)
		return
	}

	days := daysUntil(item.DateAdded, item.NextReviewDate)
	setFlash(w, "success", fmt.Sprintf("「%s」を登録しました。次は%d日後です！", item.Topic, days))

	if r.URL.Query().Has("bookmarklet") {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<script>window.close();</script>")
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// ReviewItem は復習評価ボタンを処理する。
// POST /review/{id}
func (h *Handler) ReviewItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// 値はそのままサービスへ渡す。空文字や未知の値の拒否は評価解析側が行う。
	outcome := r.PostFormValue("confidence")

	item, err := h.service.RecordOutcome(r.Context(), id, outcome)
	if err != nil {
		h.flashError(w, err)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if outcome == "again" {
		setFlash(w, "info", fmt.Sprintf("「%s」を明日もう一度復習しましょう。", item.Topic))
	} else {
		days := daysUntil(h.service.Today(), item.NextReviewDate)
		setFlash(w, "success", fmt.Sprintf("「%s」を復習しました。次は%d日後です。", item.Topic, days))
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// UpdateDate は次回復習日の直接変更を処理する。
// POST /update_date/{id}
func (h *Handler) UpdateDate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	newDate := r.PostFormValue("new_date")

	item, err := h.service.OverrideDueDate(r.Context(), id, newDate)
	if err != nil {
		h.flashError(w, err)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	setFlash(w, "success", fmt.Sprintf("「%s」の次回復習日を%sに変更しました。", item.Topic, newDate))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// DeleteItem は項目削除を処理する。
// POST /delete/{id}
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	item, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.flashError(w, err)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.flashError(w, err)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	setFlash(w, "info", fmt.Sprintf("「%s」を削除しました。", item.Topic))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// editFormData は編集ページのテンプレートデータ。
type editFormData struct {
	Flash *flash
	Item  *model.ReviewItem
}

// EditForm は編集ページを表示する。
// GET /edit/{id}
func (h *Handler) EditForm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	item, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.flashError(w, err)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	h.render(w, "edit_item.html", editFormData{
		Flash: popFlash(w, r),
		Item:  item,
	})
}

// EditItem は編集フォームの送信を処理する。スケジューリング状態には触れない。
// POST /edit/{id}
func (h *Handler) EditItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := r.ParseForm(); err != nil {
		setFlash(w, "danger", "フォームの解析に失敗しました。")
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	item, err := h.service.EditFields(r.Context(), id, review.EditInput{
		Topic:    r.PostFormValue("topic"),
		URL:      r.PostFormValue("url"),
		Category: r.PostFormValue("category"),
	})
	if err != nil {
		h.flashError(w, err)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	setFlash(w, "success", fmt.Sprintf("「%s」を更新しました。", item.Topic))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// bookmarkletData はブックマークレット設定ページのテンプレートデータ。
type bookmarkletData struct {
	Flash *flash
	Link  template.URL
}

// Bookmarklet はブックマークレットの説明ページを表示する。
// ブックマークレットは他サイト上で動くため、リンクにはこのアプリの絶対URLを埋め込む。
// javascript:スキームはhtml/templateにフィルタされるため、Goで組み立てたURLを渡す。
// GET /bookmarklet
func (h *Handler) Bookmarklet(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	link := fmt.Sprintf(
		"javascript:(function(){window.open('%s://%s/add?bookmarklet=1&title='+encodeURIComponent(document.title)+'&url='+encodeURIComponent(location.href),'_blank','width=520,height=640');})();",
		scheme, r.Host,
	)
	h.render(w, "bookmarklet.html", bookmarkletData{
		Flash: popFlash(w, r),
		Link:  template.URL(link),
	})
}

// render はテンプレートを実行してレスポンスを書き込む。
func (h *Handler) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		h.logger.Error("テンプレートの実行に失敗しました",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
	}
}

// renderError はページ表示中のエラーをログに残し、500を返す。
func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("ページの表示に失敗しました",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	http.Error(w, "内部エラーが発生しました。", http.StatusInternalServerError)
}

// flashError はサービス層のエラーをフラッシュメッセージに変換する。
func (h *Handler) flashError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		setFlash(w, "danger", apiErr.Message)
		return
	}
	setFlash(w, "danger", "内部エラーが発生しました。")
}

// daysUntil はfromからtoまでの日数を返す。
func daysUntil(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
