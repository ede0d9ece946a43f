// Package notifier defines the notification capability shared by every
// delivery backend (email, Discord, Telegram).
//
// A Notifier hands out a Session for a single invocation. The session is
// acquired, used to send one message, and released on every exit path:
//
//	err := notifier.Run(ctx, n, msg, releaseTimeout)
//
// Dispatch runs several notifiers concurrently. A failure in one backend never
// cancels the others; each outcome is returned as a Report.
//
// # Errors
//
// Acquire fails with ErrConfig when required configuration is missing and with
// ErrConnection when the backend cannot be reached or rejects credentials.
// Send fails with a *DeliveryError that counts how many recipients succeeded.
package notifier
