/*
Package user holds the campus profile and the Directory collaborator the realtime core resolves
profiles through.

The core never mutates profiles; it only needs id, display name, avatar and the online flag to
render conversation participants.
*/
package user

// SystemID is the sender id of synthetic messages.
const SystemID = "system"

// User is a campus profile as served by the directory.
type User struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	Name      string   `json:"name"`
	Major     string   `json:"major"`
	Year      int      `json:"year"`
	Avatar    string   `json:"avatar"`
	Skills    []string `json:"skills"`
	Interests []string `json:"interests"`
	Bio       string   `json:"bio"`
	Online    bool     `json:"online"`
}

// Summary is the narrow profile carried inside conversations.
type Summary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Online bool   `json:"online"`
}

// Summary returns the participant view of u.
func (u User) Summary() Summary {
	return Summary{ID: u.ID, Name: u.Name, Avatar: u.Avatar, Online: u.Online}
}
