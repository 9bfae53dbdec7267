package repository

import (
	"context"
	"math/rand"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"slangmaster/models"
	"slangmaster/utils"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

type memoryState struct {
	seq         map[string]uint
	users       map[uint]models.User
	profiles    map[uint]models.Profile                // by user id
	tokens      map[uint]models.EmailVerificationToken // by user id
	stats       map[uint]models.UserStats              // by user id
	badges      map[uint]models.Badge
	avatars     map[uint]models.Avatar
	words       map[uint]models.Word
	substitutes map[uint][]uint
	userBadges  []models.UserBadge
	userAvatars map[uint]map[uint]time.Time
	userWords   map[uint]map[uint]models.UserWord
	history     []models.GameHistory
}

func newMemoryState() *memoryState {
	return &memoryState{
		seq:         map[string]uint{},
		users:       map[uint]models.User{},
		profiles:    map[uint]models.Profile{},
		tokens:      map[uint]models.EmailVerificationToken{},
		stats:       map[uint]models.UserStats{},
		badges:      map[uint]models.Badge{},
		avatars:     map[uint]models.Avatar{},
		words:       map[uint]models.Word{},
		substitutes: map[uint][]uint{},
		userAvatars: map[uint]map[uint]time.Time{},
		userWords:   map[uint]map[uint]models.UserWord{},
	}
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		seq:         cloneMap(s.seq),
		users:       cloneMap(s.users),
		profiles:    cloneMap(s.profiles),
		tokens:      cloneMap(s.tokens),
		stats:       cloneMap(s.stats),
		badges:      cloneMap(s.badges),
		avatars:     cloneMap(s.avatars),
		words:       cloneMap(s.words),
		substitutes: cloneMap(s.substitutes),
		userBadges:  slices.Clone(s.userBadges),
		userAvatars: make(map[uint]map[uint]time.Time, len(s.userAvatars)),
		userWords:   make(map[uint]map[uint]models.UserWord, len(s.userWords)),
		history:     slices.Clone(s.history),
	}
	for k, v := range s.userAvatars {
		c.userAvatars[k] = cloneMap(v)
	}
	for k, v := range s.userWords {
		c.userWords[k] = cloneMap(v)
	}
	return c
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memoryState) nextID(table string) uint {
	s.seq[table]++
	return s.seq[table]
}

type memoryStore struct {
	mu    sync.Mutex
	txMu  sync.Mutex
	state *memoryState
}

// MemoryRepository keeps everything in process memory. Transactions are
// serialized and roll back by restoring a snapshot, which also makes
// LockStats inside a transaction behave like a row lock.
type MemoryRepository struct {
	store *memoryStore
	inTx  bool
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{store: &memoryStore{state: newMemoryState()}}
}

func (r *MemoryRepository) locked(fn func(s *memoryState) error) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return fn(r.store.state)
}

func (r *MemoryRepository) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	if r.inTx {
		return fn(r)
	}
	r.store.txMu.Lock()
	defer r.store.txMu.Unlock()

	r.store.mu.Lock()
	snapshot := r.store.state.clone()
	r.store.mu.Unlock()

	if err := fn(&MemoryRepository{store: r.store, inTx: true}); err != nil {
		r.store.mu.Lock()
		r.store.state = snapshot
		r.store.mu.Unlock()
		return err
	}
	return nil
}

// --- users ---

func (r *MemoryRepository) CreateUser(ctx context.Context, user *models.User) error {
	return r.locked(func(s *memoryState) error {
		for _, u := range s.users {
			if strings.EqualFold(u.Email, user.Email) || u.Username == user.Username {
				return ErrDuplicate
			}
		}
		user.ID = s.nextID("users")
		if user.DateJoined.IsZero() {
			user.DateJoined = time.Now()
		}
		user.UpdatedAt = time.Now()
		s.users[user.ID] = *user
		return nil
	})
}

func (r *MemoryRepository) findUser(match func(models.User) bool) (*models.User, error) {
	var found *models.User
	err := r.locked(func(s *memoryState) error {
		for _, u := range s.users {
			if match(u) {
				found = &u
				return nil
			}
		}
		return ErrNotFound
	})
	return found, err
}

func (r *MemoryRepository) FindUserByID(ctx context.Context, id uint) (*models.User, error) {
	return r.findUser(func(u models.User) bool { return u.ID == id })
}

func (r *MemoryRepository) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findUser(func(u models.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *MemoryRepository) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findUser(func(u models.User) bool { return u.Username == username })
}

func (r *MemoryRepository) SaveUser(ctx context.Context, user *models.User) error {
	return r.locked(func(s *memoryState) error {
		if _, ok := s.users[user.ID]; !ok {
			return ErrNotFound
		}
		user.UpdatedAt = time.Now()
		s.users[user.ID] = *user
		return nil
	})
}

func (r *MemoryRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.locked(func(s *memoryState) error {
		for _, u := range s.users {
			users = append(users, u)
		}
		return nil
	})
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, err
}

func (r *MemoryRepository) CountUsers(ctx context.Context, onlineOnly bool) (int64, error) {
	var count int64
	err := r.locked(func(s *memoryState) error {
		for _, u := range s.users {
			if !onlineOnly || u.IsOnline {
				count++
			}
		}
		return nil
	})
	return count, err
}

// --- profiles & verification ---

func (r *MemoryRepository) CreateProfile(ctx context.Context, profile *models.Profile) error {
	return r.locked(func(s *memoryState) error {
		if _, exists := s.profiles[profile.UserID]; exists {
			return ErrDuplicate
		}
		profile.ID = s.nextID("profiles")
		if profile.Image == "" {
			profile.Image = models.DefaultProfileImage
		}
		stored := *profile
		stored.CurrentAvatar = nil
		s.profiles[profile.UserID] = stored
		return nil
	})
}

func (r *MemoryRepository) FindProfile(ctx context.Context, userID uint) (*models.Profile, error) {
	var profile *models.Profile
	err := r.locked(func(s *memoryState) error {
		p, ok := s.profiles[userID]
		if !ok {
			return ErrNotFound
		}
		if p.CurrentAvatarID != nil {
			if a, ok := s.avatars[*p.CurrentAvatarID]; ok {
				p.CurrentAvatar = &a
			}
		}
		profile = &p
		return nil
	})
	return profile, err
}

func (r *MemoryRepository) SaveProfile(ctx context.Context, profile *models.Profile) error {
	return r.locked(func(s *memoryState) error {
		if _, ok := s.profiles[profile.UserID]; !ok {
			return ErrNotFound
		}
		stored := *profile
		stored.CurrentAvatar = nil
		s.profiles[profile.UserID] = stored
		return nil
	})
}

func (r *MemoryRepository) SaveVerificationToken(ctx context.Context, token *models.EmailVerificationToken) error {
	return r.locked(func(s *memoryState) error {
		if existing, ok := s.tokens[token.UserID]; ok {
			token.ID = existing.ID
		} else {
			token.ID = s.nextID("tokens")
		}
		s.tokens[token.UserID] = *token
		return nil
	})
}

func (r *MemoryRepository) FindVerificationToken(ctx context.Context, token uuid.UUID) (*models.EmailVerificationToken, error) {
	var found *models.EmailVerificationToken
	err := r.locked(func(s *memoryState) error {
		for _, t := range s.tokens {
			if t.Token == token {
				found = &t
				return nil
			}
		}
		return ErrNotFound
	})
	return found, err
}

func (r *MemoryRepository) DeleteVerificationToken(ctx context.Context, id uint) error {
	return r.locked(func(s *memoryState) error {
		for userID, t := range s.tokens {
			if t.ID == id {
				delete(s.tokens, userID)
			}
		}
		return nil
	})
}

func (r *MemoryRepository) DeleteExpiredVerificationTokens(ctx context.Context, now time.Time) (int64, error) {
	var removed int64
	err := r.locked(func(s *memoryState) error {
		for userID, t := range s.tokens {
			if !t.ExpiresAt.After(now) {
				delete(s.tokens, userID)
				removed++
			}
		}
		return nil
	})
	return removed, err
}

// --- stats ---

func (r *MemoryRepository) FindStats(ctx context.Context, userID uint) (*models.UserStats, error) {
	var stats models.UserStats
	err := r.locked(func(s *memoryState) error {
		existing, ok := s.stats[userID]
		if !ok {
			now := time.Now()
			existing = models.UserStats{ID: s.nextID("stats"), UserID: userID, CreatedAt: now, UpdatedAt: now}
			s.stats[userID] = existing
		}
		stats = existing
		return nil
	})
	return &stats, err
}

func (r *MemoryRepository) LockStats(ctx context.Context, userID uint) (*models.UserStats, error) {
	return r.FindStats(ctx, userID)
}

func (r *MemoryRepository) FindStatsByID(ctx context.Context, id uint) (*models.UserStats, error) {
	var found *models.UserStats
	err := r.locked(func(s *memoryState) error {
		for _, st := range s.stats {
			if st.ID == id {
				found = &st
				return nil
			}
		}
		return ErrNotFound
	})
	return found, err
}

func (r *MemoryRepository) SaveStats(ctx context.Context, stats *models.UserStats) error {
	return r.locked(func(s *memoryState) error {
		stats.UpdatedAt = time.Now()
		s.stats[stats.UserID] = *stats
		return nil
	})
}

func (r *MemoryRepository) ListStats(ctx context.Context) ([]models.UserStats, error) {
	var all []models.UserStats
	err := r.locked(func(s *memoryState) error {
		for _, st := range s.stats {
			all = append(all, st)
		}
		return nil
	})
	sort.Slice(all, func(i, j int) bool { return all[i].UserID < all[j].UserID })
	return all, err
}

func (r *MemoryRepository) ResetStaleStreaks(ctx context.Context, before time.Time) (int64, error) {
	var reset int64
	err := r.locked(func(s *memoryState) error {
		for userID, st := range s.stats {
			if st.LastLoginDate != nil && st.LastLoginDate.Before(before) && st.CurrentStreak > 0 {
				st.CurrentStreak = 0
				s.stats[userID] = st
				reset++
			}
		}
		return nil
	})
	return reset, err
}

// --- ownership ---

func (r *MemoryRepository) OwnedBadgeIDs(ctx context.Context, userID uint) (map[uint]bool, error) {
	owned := map[uint]bool{}
	err := r.locked(func(s *memoryState) error {
		for _, ub := range s.userBadges {
			if ub.UserID == userID {
				owned[ub.BadgeID] = true
			}
		}
		return nil
	})
	return owned, err
}

func (r *MemoryRepository) GrantBadge(ctx context.Context, userID, badgeID uint) (bool, error) {
	granted := false
	err := r.locked(func(s *memoryState) error {
		for _, ub := range s.userBadges {
			if ub.UserID == userID && ub.BadgeID == badgeID {
				return nil
			}
		}
		s.userBadges = append(s.userBadges, models.UserBadge{
			ID:        s.nextID("user_badges"),
			UserID:    userID,
			BadgeID:   badgeID,
			AwardedAt: time.Now(),
		})
		granted = true
		return nil
	})
	return granted, err
}

func (r *MemoryRepository) ListUserBadges(ctx context.Context, userID uint, since time.Time) ([]models.UserBadge, error) {
	var owned []models.UserBadge
	err := r.locked(func(s *memoryState) error {
		for _, ub := range s.userBadges {
			if ub.UserID != userID || (!since.IsZero() && !ub.AwardedAt.After(since)) {
				continue
			}
			ub.Badge = s.badges[ub.BadgeID]
			owned = append(owned, ub)
		}
		return nil
	})
	sort.SliceStable(owned, func(i, j int) bool {
		if owned[i].AwardedAt.Equal(owned[j].AwardedAt) {
			return owned[i].ID < owned[j].ID
		}
		return owned[i].AwardedAt.Before(owned[j].AwardedAt)
	})
	return owned, err
}

func (r *MemoryRepository) UnlockAvatar(ctx context.Context, userID, avatarID uint) (bool, error) {
	added := false
	err := r.locked(func(s *memoryState) error {
		set, ok := s.userAvatars[userID]
		if !ok {
			set = map[uint]time.Time{}
			s.userAvatars[userID] = set
		}
		if _, exists := set[avatarID]; exists {
			return nil
		}
		set[avatarID] = time.Now()
		added = true
		return nil
	})
	return added, err
}

func (r *MemoryRepository) ListUnlockedAvatars(ctx context.Context, userID uint) ([]models.UserAvatar, error) {
	var rows []models.UserAvatar
	err := r.locked(func(s *memoryState) error {
		for avatarID, at := range s.userAvatars[userID] {
			rows = append(rows, models.UserAvatar{
				UserID:     userID,
				AvatarID:   avatarID,
				UnlockedAt: at,
				Avatar:     s.avatars[avatarID],
			})
		}
		return nil
	})
	sort.Slice(rows, func(i, j int) bool { return rows[i].AvatarID < rows[j].AvatarID })
	return rows, err
}

func (r *MemoryRepository) CountUnlockedAvatars(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.locked(func(s *memoryState) error {
		count = int64(len(s.userAvatars[userID]))
		return nil
	})
	return count, err
}

func (r *MemoryRepository) UnlockWords(ctx context.Context, userID uint, wordIDs []uint, learned bool, now time.Time) error {
	return r.locked(func(s *memoryState) error {
		set, ok := s.userWords[userID]
		if !ok {
			set = map[uint]models.UserWord{}
			s.userWords[userID] = set
		}
		for _, id := range uniqueIDs(wordIDs) {
			row, exists := set[id]
			if !exists {
				row = models.UserWord{UserID: userID, WordID: id, SeenAt: now}
			}
			if learned && !row.Learned {
				learnedAt := now
				row.Learned = true
				row.LearnedAt = &learnedAt
			}
			set[id] = row
		}
		return nil
	})
}

func (r *MemoryRepository) WordCounts(ctx context.Context, userID uint) (models.WordCounts, error) {
	counts := models.WordCounts{}
	err := r.locked(func(s *memoryState) error {
		for wordID, row := range s.userWords[userID] {
			word, ok := s.words[wordID]
			if !ok {
				continue
			}
			c := counts[word.WordType]
			c.Seen++
			if row.Learned {
				c.Learned++
			}
			counts[word.WordType] = c
		}
		return nil
	})
	return counts, err
}

// --- badges ---

func (r *MemoryRepository) ListBadges(ctx context.Context) ([]models.Badge, error) {
	var badges []models.Badge
	err := r.locked(func(s *memoryState) error {
		for _, b := range s.badges {
			badges = append(badges, b)
		}
		return nil
	})
	sort.Slice(badges, func(i, j int) bool { return badges[i].ID < badges[j].ID })
	return badges, err
}

func (r *MemoryRepository) FindBadge(ctx context.Context, id uint) (*models.Badge, error) {
	var found *models.Badge
	err := r.locked(func(s *memoryState) error {
		b, ok := s.badges[id]
		if !ok {
			return ErrNotFound
		}
		found = &b
		return nil
	})
	return found, err
}

func (r *MemoryRepository) FindBadgeByTitle(ctx context.Context, title string) (*models.Badge, error) {
	var found *models.Badge
	err := r.locked(func(s *memoryState) error {
		for _, b := range s.badges {
			if b.Title == title {
				found = &b
				return nil
			}
		}
		return ErrNotFound
	})
	return found, err
}

func (r *MemoryRepository) CreateBadge(ctx context.Context, badge *models.Badge) error {
	return r.locked(func(s *memoryState) error {
		for _, b := range s.badges {
			if b.Title == badge.Title {
				return ErrDuplicate
			}
		}
		badge.ID = s.nextID("badges")
		if badge.Category == "" {
			badge.Category = models.BadgeCategoryBasic
		}
		if badge.CreatedAt.IsZero() {
			badge.CreatedAt = time.Now()
		}
		s.badges[badge.ID] = *badge
		return nil
	})
}

func (r *MemoryRepository) SaveBadge(ctx context.Context, badge *models.Badge) error {
	return r.locked(func(s *memoryState) error {
		for _, b := range s.badges {
			if b.Title == badge.Title && b.ID != badge.ID {
				return ErrDuplicate
			}
		}
		s.badges[badge.ID] = *badge
		return nil
	})
}

func (r *MemoryRepository) DeleteBadge(ctx context.Context, id uint) error {
	return r.locked(func(s *memoryState) error {
		if _, ok := s.badges[id]; !ok {
			return ErrNotFound
		}
		delete(s.badges, id)
		s.userBadges = slices.DeleteFunc(s.userBadges, func(ub models.UserBadge) bool { return ub.BadgeID == id })
		return nil
	})
}

func (r *MemoryRepository) CountBadges(ctx context.Context) (int64, error) {
	var count int64
	err := r.locked(func(s *memoryState) error {
		count = int64(len(s.badges))
		return nil
	})
	return count, err
}

// --- avatars ---

func (r *MemoryRepository) ListAvatars(ctx context.Context) ([]models.Avatar, error) {
	var avatars []models.Avatar
	err := r.locked(func(s *memoryState) error {
		for _, a := range s.avatars {
			avatars = append(avatars, a)
		}
		return nil
	})
	sort.Slice(avatars, func(i, j int) bool { return avatars[i].Name < avatars[j].Name })
	return avatars, err
}

func (r *MemoryRepository) ListDefaultAvatars(ctx context.Context) ([]models.Avatar, error) {
	var avatars []models.Avatar
	err := r.locked(func(s *memoryState) error {
		for _, a := range s.avatars {
			if a.IsDefault {
				avatars = append(avatars, a)
			}
		}
		return nil
	})
	sort.Slice(avatars, func(i, j int) bool { return avatars[i].ID < avatars[j].ID })
	return avatars, err
}

func (r *MemoryRepository) FindAvatar(ctx context.Context, id uint) (*models.Avatar, error) {
	var found *models.Avatar
	err := r.locked(func(s *memoryState) error {
		a, ok := s.avatars[id]
		if !ok {
			return ErrNotFound
		}
		found = &a
		return nil
	})
	return found, err
}

func (r *MemoryRepository) FindAvatarByName(ctx context.Context, name string) (*models.Avatar, error) {
	var found *models.Avatar
	err := r.locked(func(s *memoryState) error {
		for _, a := range s.avatars {
			if a.Name == name {
				found = &a
				return nil
			}
		}
		return ErrNotFound
	})
	return found, err
}

func (r *MemoryRepository) CreateAvatar(ctx context.Context, avatar *models.Avatar) error {
	return r.locked(func(s *memoryState) error {
		for _, a := range s.avatars {
			if a.Name == avatar.Name {
				return ErrDuplicate
			}
		}
		avatar.ID = s.nextID("avatars")
		if avatar.CreatedAt.IsZero() {
			avatar.CreatedAt = time.Now()
		}
		s.avatars[avatar.ID] = *avatar
		return nil
	})
}

func (r *MemoryRepository) SaveAvatar(ctx context.Context, avatar *models.Avatar) error {
	return r.locked(func(s *memoryState) error {
		for _, a := range s.avatars {
			if a.Name == avatar.Name && a.ID != avatar.ID {
				return ErrDuplicate
			}
		}
		s.avatars[avatar.ID] = *avatar
		return nil
	})
}

func (r *MemoryRepository) DeleteAvatar(ctx context.Context, id uint) error {
	return r.locked(func(s *memoryState) error {
		if _, ok := s.avatars[id]; !ok {
			return ErrNotFound
		}
		delete(s.avatars, id)
		for _, set := range s.userAvatars {
			delete(set, id)
		}
		for userID, p := range s.profiles {
			if p.CurrentAvatarID != nil && *p.CurrentAvatarID == id {
				p.CurrentAvatarID = nil
				s.profiles[userID] = p
			}
		}
		return nil
	})
}

// --- words ---

func (s *memoryState) hydrate(w models.Word) models.Word {
	w.Substitutes = nil
	for _, id := range s.substitutes[w.ID] {
		if sub, ok := s.words[id]; ok {
			w.Substitutes = append(w.Substitutes, &sub)
		}
	}
	return w
}

func (s *memoryState) storeWord(w *models.Word) {
	ids := make([]uint, 0, len(w.Substitutes))
	for _, sub := range w.Substitutes {
		if sub != nil && sub.ID != 0 {
			ids = append(ids, sub.ID)
		}
	}
	s.substitutes[w.ID] = ids
	stored := *w
	stored.Substitutes = nil
	s.words[w.ID] = stored
}

func matchesSearch(w models.Word, folded string) bool {
	if strings.Contains(utils.FoldSearch(w.Text), folded) ||
		strings.Contains(utils.FoldSearch(w.Description), folded) {
		return true
	}
	s := slug.Make(folded)
	return s != "" && strings.Contains(w.Slug, s)
}

func (r *MemoryRepository) ListWords(ctx context.Context, filter WordFilter) ([]models.Word, int64, error) {
	var matched []models.Word
	folded := utils.FoldSearch(filter.Search)
	err := r.locked(func(s *memoryState) error {
		for _, w := range s.words {
			if filter.WordType != "" && w.WordType != filter.WordType {
				continue
			}
			if folded != "" && !matchesSearch(w, folded) {
				continue
			}
			matched = append(matched, s.hydrate(w))
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := min(filter.Offset, len(matched))
	end := len(matched)
	if filter.Limit > 0 {
		end = min(start+filter.Limit, len(matched))
	}
	return matched[start:end], total, nil
}

func (r *MemoryRepository) FindWord(ctx context.Context, id uint) (*models.Word, error) {
	var found *models.Word
	err := r.locked(func(s *memoryState) error {
		w, ok := s.words[id]
		if !ok {
			return ErrNotFound
		}
		w = s.hydrate(w)
		found = &w
		return nil
	})
	return found, err
}

func (r *MemoryRepository) FindWordsByIDs(ctx context.Context, ids []uint) ([]models.Word, error) {
	var words []models.Word
	err := r.locked(func(s *memoryState) error {
		for _, id := range uniqueIDs(ids) {
			if w, ok := s.words[id]; ok {
				words = append(words, w)
			}
		}
		return nil
	})
	sort.Slice(words, func(i, j int) bool { return words[i].ID < words[j].ID })
	return words, err
}

func (r *MemoryRepository) CreateWord(ctx context.Context, word *models.Word) error {
	return r.locked(func(s *memoryState) error {
		for _, w := range s.words {
			if w.Text == word.Text {
				return ErrDuplicate
			}
		}
		word.ID = s.nextID("words")
		now := time.Now()
		if word.CreatedAt.IsZero() {
			word.CreatedAt = now
		}
		word.UpdatedAt = now
		if word.WordType == "" {
			word.WordType = models.WordTypeNone
		}
		s.storeWord(word)
		return nil
	})
}

func (r *MemoryRepository) SaveWord(ctx context.Context, word *models.Word) error {
	return r.locked(func(s *memoryState) error {
		if _, ok := s.words[word.ID]; !ok {
			return ErrNotFound
		}
		for _, w := range s.words {
			if w.Text == word.Text && w.ID != word.ID {
				return ErrDuplicate
			}
		}
		word.UpdatedAt = time.Now()
		s.storeWord(word)
		return nil
	})
}

func (r *MemoryRepository) DeleteWord(ctx context.Context, id uint) error {
	return r.locked(func(s *memoryState) error {
		if _, ok := s.words[id]; !ok {
			return ErrNotFound
		}
		delete(s.words, id)
		delete(s.substitutes, id)
		for wordID, subs := range s.substitutes {
			s.substitutes[wordID] = slices.DeleteFunc(subs, func(sub uint) bool { return sub == id })
		}
		for _, set := range s.userWords {
			delete(set, id)
		}
		return nil
	})
}

func (r *MemoryRepository) CountWords(ctx context.Context) (int64, error) {
	var count int64
	err := r.locked(func(s *memoryState) error {
		count = int64(len(s.words))
		return nil
	})
	return count, err
}

func (r *MemoryRepository) pickWords(limit int, exclude []uint, keep func(models.Word) bool) ([]models.Word, error) {
	var pool []models.Word
	err := r.locked(func(s *memoryState) error {
		for _, w := range s.words {
			if slices.Contains(exclude, w.ID) || !keep(w) {
				continue
			}
			pool = append(pool, w)
		}
		return nil
	})
	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if limit >= 0 && len(pool) > limit {
		pool = pool[:limit]
	}
	return pool, err
}

func (r *MemoryRepository) RandomWords(ctx context.Context, wordType models.WordType, limit int, exclude []uint) ([]models.Word, error) {
	return r.pickWords(limit, exclude, func(w models.Word) bool {
		return wordType == "" || w.WordType == wordType
	})
}

func (r *MemoryRepository) WordsWithTag(ctx context.Context, tag string, limit int, exclude []uint) ([]models.Word, error) {
	return r.pickWords(limit, exclude, func(w models.Word) bool {
		return slices.Contains([]string(w.Tags), tag)
	})
}

// --- history ---

func (r *MemoryRepository) CreateGameHistory(ctx context.Context, entry *models.GameHistory) error {
	return r.locked(func(s *memoryState) error {
		if entry.SubmissionKey != nil {
			for _, h := range s.history {
				if h.UserID == entry.UserID && h.SubmissionKey != nil && *h.SubmissionKey == *entry.SubmissionKey {
					return ErrDuplicateSubmission
				}
			}
		}
		entry.ID = s.nextID("game_history")
		if entry.PlayedAt.IsZero() {
			entry.PlayedAt = time.Now()
		}
		s.history = append(s.history, *entry)
		return nil
	})
}

func (r *MemoryRepository) ListGameHistory(ctx context.Context, userID uint, limit int) ([]models.GameHistory, error) {
	var entries []models.GameHistory
	err := r.locked(func(s *memoryState) error {
		for i := len(s.history) - 1; i >= 0; i-- {
			if s.history[i].UserID == userID {
				entries = append(entries, s.history[i])
			}
			if limit > 0 && len(entries) == limit {
				break
			}
		}
		return nil
	})
	return entries, err
}
