package user

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"
)

// MemoryDirectory is a Directory backed by a map. It is used in development and tests.
type MemoryDirectory struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewMemoryDirectory returns a directory holding users.
func NewMemoryDirectory(users ...User) *MemoryDirectory {
	return &MemoryDirectory{
		users: lo.KeyBy(users, func(u User) string { return u.ID }),
	}
}

// Resolve implements Directory.
func (d *MemoryDirectory) Resolve(_ context.Context, id string) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[id]
	if !ok {
		return User{}, fmt.Errorf("resolve %q: %w", id, ErrUserNotFound)
	}
	return u, nil
}

// List implements Directory.
func (d *MemoryDirectory) List(_ context.Context) ([]User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	users := lo.Values(d.users)
	slices.SortFunc(users, func(a, b User) int { return strings.Compare(a.ID, b.ID) })
	return users, nil
}

// SetOnline flips the online flag of a profile. Unknown ids are ignored.
func (d *MemoryDirectory) SetOnline(_ context.Context, id string, online bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if u, ok := d.users[id]; ok {
		u.Online = online
		d.users[id] = u
	}
	return nil
}

// DemoUsers returns the seeded campus profiles: the demo viewer u1 and the classmates u2..u4.
func DemoUsers() []User {
	return []User{
		{
			ID:        "u1",
			Email:     "demo@uni.edu",
			Name:      "Alex Rivera",
			Major:     "Computer Science",
			Year:      3,
			Avatar:    "https://picsum.photos/200/200?random=1",
			Skills:    []string{"React", "TypeScript", "Node.js"},
			Interests: []string{"AI", "Hackathons", "Startups"},
			Bio:       "Passionate about building scalable web apps and exploring AI.",
		},
		{
			ID:        "u2",
			Email:     "sarah.chen@uni.edu",
			Name:      "Sarah Chen",
			Major:     "Data Science",
			Year:      4,
			Avatar:    "https://picsum.photos/200/200?random=2",
			Skills:    []string{"Python", "PyTorch", "SQL"},
			Interests: []string{"Machine Learning", "Big Data"},
			Bio:       "Looking for a frontend dev to partner on a capstone project.",
			Online:    true,
		},
		{
			ID:        "u3",
			Email:     "james.wilson@uni.edu",
			Name:      "James Wilson",
			Major:     "Business Admin",
			Year:      2,
			Avatar:    "https://picsum.photos/200/200?random=3",
			Skills:    []string{"Marketing", "Public Speaking", "Excel"},
			Interests: []string{"FinTech", "Entrepreneurship"},
			Bio:       "Want to launch a startup before graduation.",
		},
		{
			ID:        "u4",
			Email:     "emily.davis@uni.edu",
			Name:      "Emily Davis",
			Major:     "Design",
			Year:      3,
			Avatar:    "https://picsum.photos/200/200?random=4",
			Skills:    []string{"Figma", "UI/UX", "Adobe Suite"},
			Interests: []string{"Accessible Design", "Mobile Apps"},
			Bio:       "I make things look good and work well.",
			Online:    true,
		},
	}
}
