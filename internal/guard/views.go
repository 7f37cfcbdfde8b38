package guard

// View describes a navigable destination and what the guard requires of it.
//
// OnConnected and OnDisconnected are where to go once the integration check resolves; "" means remain.
type View struct {
	Name             string
	Path             string
	RequiresAuth     bool
	NeedsIntegration bool
	OnConnected      string
	OnDisconnected   string
}

const (
	LoginPath    = "/login"
	ConnectPath  = "/linkedin-connect"
	HomePath     = "/dashboard"
	ProfilePath  = "/dashboard/profile"
	CallbackPath = "/auth/google/callback"
)

var (
	Login = View{Name: "login", Path: LoginPath}

	// Connect is the integration-connect view; it moves on to the profile once connected.
	Connect = View{
		Name:             "linkedin-connect",
		Path:             ConnectPath,
		RequiresAuth:     true,
		NeedsIntegration: true,
		OnConnected:      ProfilePath,
	}

	// Callback is where the Google login lands. It always moves on.
	Callback = View{
		Name:             "google-callback",
		Path:             CallbackPath,
		RequiresAuth:     true,
		NeedsIntegration: true,
		OnConnected:      ProfilePath,
		OnDisconnected:   ConnectPath,
	}
)

// Dashboard returns a dashboard view at path. Every dashboard view needs the integration.
func Dashboard(name, path string) View {
	return View{
		Name:             name,
		Path:             path,
		RequiresAuth:     true,
		NeedsIntegration: true,
		OnDisconnected:   ConnectPath,
	}
}

var (
	Home      = Dashboard("dashboard", HomePath)
	Profile   = Dashboard("profile", ProfilePath)
	Post      = Dashboard("post", "/dashboard/post")
	Storage   = Dashboard("storage", "/dashboard/storage")
	Scheduled = Dashboard("scheduled", "/dashboard/scheduled")
)

var known = map[string]View{}

func init() {
	for _, v := range []View{Login, Connect, Callback, Home, Profile, Post, Storage, Scheduled} {
		known[v.Path] = v
	}
}

// Lookup finds a predefined view by path.
func Lookup(path string) (View, bool) {
	v, ok := known[path]
	return v, ok
}
