// Package commands defines the memectl CLI, a terminal client for memeboard.
//
// Commands
//
//   - register, login, logout, whoami   Manage the saved session
//   - feed                             Print the popular or following feed
//   - like, unlike                      Toggle a like on a meme
//   - upload                           Post a meme from a file or URL
//   - follow, unfollow                  Manage who you follow
//   - chat list | watch | send          Conversations and messages
//
// The session (API URL, token and user) lives in ~/.memectl/session.json.
// MEMEBOARD_API_URL overrides the saved API URL; --api overrides both.
package commands
