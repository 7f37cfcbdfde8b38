package backend

import (
	"time"

	"golang.org/x/oauth2"
)

// User is the authenticated profile returned by /auth/me.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FullName  string `json:"full_name"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// DisplayName is the best label available for u.
func (u User) DisplayName() string {
	switch {
	case u.FullName != "":
		return u.FullName
	case u.Username != "":
		return u.Username
	default:
		return u.Email
	}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignupRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

// AuthResponse is returned by login and signup.
type AuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        User   `json:"user"`
}

// GoogleStatus reports whether the backend can run the Google login handshake.
type GoogleStatus struct {
	Configured             bool   `json:"google_oauth_configured"`
	RedirectURI            string `json:"redirect_uri"`
	ClientID               string `json:"client_id"`
	ClientSecretConfigured bool   `json:"client_secret_configured"`
	LoginURL               string `json:"login_url"`
	CallbackURL            string `json:"callback_url"`
}

// LinkedInToken is the integration credential held by the backend on the user's behalf.
type LinkedInToken struct {
	ID             int    `json:"id"`
	UserID         string `json:"user_id"`
	LinkedInUserID string `json:"linkedin_user_id"`
	AccessToken    string `json:"access_token"`
	RefreshToken   string `json:"refresh_token"`
	TokenType      string `json:"token_type"`
	Scope          string `json:"scope"`
	ExpiresIn      int    `json:"expires_in"`
	ExpiresAt      string `json:"expires_at"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// OAuth2 converts t to an [oauth2.Token] so callers can check expiry with Valid.
func (t *LinkedInToken) OAuth2() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		ExpiresIn:    int64(t.ExpiresIn),
	}
	if at, ok := parseTime(t.ExpiresAt); ok {
		tok.Expiry = at
	}
	return tok
}

type LinkedInLocale struct {
	Language string `json:"language"`
	Country  string `json:"country"`
}

// LinkedInProfile is the member profile behind the integration.
type LinkedInProfile struct {
	LinkedInUserID string         `json:"linkedin_user_id"`
	Name           string         `json:"name"`
	GivenName      string         `json:"given_name"`
	FamilyName     string         `json:"family_name"`
	Email          string         `json:"email"`
	EmailVerified  bool           `json:"email_verified"`
	Picture        string         `json:"picture"`
	Locale         LinkedInLocale `json:"locale"`
}

// MediaType is "image" or "video".
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// MediaItem is one entry of the remote media library.
type MediaItem struct {
	ID         string    `json:"media_id"`
	Type       MediaType `json:"media_type"`
	Platform   string    `json:"platform"`
	URL        string    `json:"public_url"`
	Filename   string    `json:"filename"`
	Size       int64     `json:"file_size"`
	Status     string    `json:"status"`
	UploadedAt string    `json:"uploaded_at"`
	ExpiresAt  string    `json:"expires_at"`
}

// MediaQuery filters and pages GET /media/. Zero values are omitted from the query string.
type MediaQuery struct {
	MediaType MediaType `url:"media_type,omitempty"`
	Limit     int       `url:"limit,omitempty"`
	Offset    int       `url:"offset"`
}

// MediaPage is one page of the media library.
type MediaPage struct {
	Success bool        `json:"success"`
	Media   []MediaItem `json:"media"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	Count   int         `json:"count"`
}

// UploadResult describes a stored media file.
type UploadResult struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	MediaID   string    `json:"media_id"`
	PublicURL string    `json:"public_url"`
	Filename  string    `json:"filename"`
	FileSize  int64     `json:"file_size"`
	MediaType MediaType `json:"media_type"`
	Error     string    `json:"error"`
}

// DeleteResult is returned by the bulk delete and cleanup endpoints.
type DeleteResult struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	DeletedCount int    `json:"deleted_count"`
	Error        string `json:"error"`
}

// Post is a published (or scheduled) post as echoed by the backend.
type Post struct {
	ID         string `json:"post_id"`
	Text       string `json:"text"`
	Visibility string `json:"visibility"`
	URL        string `json:"post_url"`
	PostedAt   string `json:"posted_at"`
}

// PostResult is the creation response for every post kind.
type PostResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Post    *Post  `json:"post"`
	Error   string `json:"error"`
}

// PostKind selects the creation endpoint.
type PostKind string

const (
	KindText     PostKind = "text"
	KindImage    PostKind = "image"
	KindMultiple PostKind = "multiple"
	KindVideo    PostKind = "video"
)

// PostInput is everything a creation request may carry. Only the fields of its Kind are sent.
type PostInput struct {
	Kind       PostKind
	Text       string
	Title      string
	Visibility string
	MediaIDs   []string
	// ScheduledAt, when non-zero, asks the backend to publish later.
	ScheduledAt time.Time
}

type ScheduledPostData struct {
	Text       string `json:"text,omitempty"`
	Visibility string `json:"visibility,omitempty"`
	MediaID    string `json:"media_id,omitempty"`
	ImageIDs   string `json:"image_ids,omitempty"`
	VideoID    string `json:"video_id,omitempty"`
	Title      string `json:"title,omitempty"`
}

// ScheduledPost is a post waiting for (or past) its publish time.
type ScheduledPost struct {
	ID               string            `json:"scheduled_post_id"`
	Platform         string            `json:"platform"`
	PostType         string            `json:"post_type"`
	Data             ScheduledPostData `json:"post_data"`
	ScheduledTime    string            `json:"scheduled_time"`
	ScheduledTimeFmt string            `json:"scheduled_time_formatted"`
	Status           string            `json:"status"`
	PublishedPostID  string            `json:"published_post_id"`
	PublishedPostURL string            `json:"published_post_url"`
	ErrorMessage     string            `json:"error_message"`
	TimeUntil        string            `json:"time_until_scheduled"`
	CreatedAt        string            `json:"created_at"`
	UpdatedAt        string            `json:"updated_at"`
}

// ScheduleQuery filters GET /scheduled-posts/my-scheduled-posts.
type ScheduleQuery struct {
	Platform string `url:"platform,omitempty"`
	Status   string `url:"status,omitempty"`
	Limit    int    `url:"limit,omitempty"`
	Offset   int    `url:"offset,omitempty"`
}

type ScheduledPage struct {
	Posts []ScheduledPost `json:"scheduled_posts"`
	Total int             `json:"total"`
}

// ScheduleUpdate patches a scheduled post. Nil PostData leaves the content untouched.
type ScheduleUpdate struct {
	ScheduledTime string             `json:"scheduled_time,omitempty"`
	PostData      *ScheduledPostData `json:"post_data,omitempty"`
}

// envelope is the {success, message, data} wrapper used by the integration and scheduling endpoints.
type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
