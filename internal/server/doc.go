// Package server runs the short-lived local listener that receives the Google login redirect.
//
// The backend finishes the Google handshake and redirects the browser to
// http://{callback_host}:{callback_port}{redirect_path}?success=true&token=...&user=...&email=...
//
// [CallbackHandler] turns that request into a session.Location. The first request is captured and answered with
// 303 See Other to the stripped address, which is the listener's replace-in-place: the credential leaves the
// browser's address bar and history. The follow-up request renders a page telling the user to return to the
// terminal and delivers the result exactly once.
//
// [BasicRouter] and the [Middleware] chain wrap handlers with request logging and panic recovery.
package server
