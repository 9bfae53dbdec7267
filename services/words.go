package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"slangmaster/models"
	"slangmaster/repository"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	DefaultWordPageSize = 6
	MaxWordPageSize     = 100
	DefaultQuizWords    = 10
	MaxQuizWords        = 50
	quizDistractors     = 3
)

type WordRef struct {
	ID   uint   `json:"id"`
	Text string `json:"text"`
}

// WordView is the API shape of a word, with substitutes flattened to refs.
type WordView struct {
	models.Word
	Substitutes []WordRef `json:"substitutes"`
}

func NewWordView(w models.Word) WordView {
	view := WordView{Word: w, Substitutes: make([]WordRef, 0, len(w.Substitutes))}
	for _, sub := range w.Substitutes {
		if sub != nil {
			view.Substitutes = append(view.Substitutes, WordRef{ID: sub.ID, Text: sub.Text})
		}
	}
	return view
}

func wordViews(words []models.Word) []WordView {
	out := make([]WordView, 0, len(words))
	for _, w := range words {
		out = append(out, NewWordView(w))
	}
	return out
}

type WordListQuery struct {
	Page     int
	Limit    int
	Search   string
	WordType models.WordType
}

type WordPage struct {
	Count      int64      `json:"count"`
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
	TotalPages int        `json:"total_pages"`
	Results    []WordView `json:"results"`
}

type WordInput struct {
	Text            string          `json:"text" validate:"required,max=255"`
	Description     string          `json:"description" validate:"required"`
	WordType        models.WordType `json:"word_type" validate:"omitempty,oneof=SLANG PHRASAL_VERB IDIOM VOCABULARY NONE"`
	Examples        []string        `json:"examples"`
	Tags            []string        `json:"tags"`
	DifficultyLevel int             `json:"difficulty_level" validate:"omitempty,min=1,max=5"`
	SubstituteIDs   []uint          `json:"substitute_ids"`
}

type QuizQuestion struct {
	WordID          uint            `json:"word_id"`
	Question        string          `json:"question"`
	WordType        models.WordType `json:"word_type"`
	Options         []string        `json:"options"`
	AcceptedAnswers []string        `json:"accepted_answers"`
}

type WordService struct {
	repo   repository.Repository
	logger *zap.Logger
}

func NewWordService(repo repository.Repository, logger *zap.Logger) *WordService {
	return &WordService{repo: repo, logger: logger}
}

func (s *WordService) List(ctx context.Context, q WordListQuery) (*WordPage, error) {
	if q.WordType != "" && !q.WordType.Valid() {
		return nil, NewFieldValidationError("invalid filter", map[string]string{"word_type": "unknown word type"})
	}
	if q.Page < 1 {
		q.Page = 1
	}
	switch {
	case q.Limit <= 0:
		q.Limit = DefaultWordPageSize
	case q.Limit > MaxWordPageSize:
		q.Limit = MaxWordPageSize
	}

	words, total, err := s.repo.ListWords(ctx, repository.WordFilter{
		Search:   strings.TrimSpace(q.Search),
		WordType: q.WordType,
		Offset:   (q.Page - 1) * q.Limit,
		Limit:    q.Limit,
	})
	if err != nil {
		return nil, NewInternalError("failed to list words", err)
	}
	return &WordPage{
		Count:      total,
		Page:       q.Page,
		Limit:      q.Limit,
		TotalPages: int((total + int64(q.Limit) - 1) / int64(q.Limit)),
		Results:    wordViews(words),
	}, nil
}

func (s *WordService) Get(ctx context.Context, id uint) (*WordView, error) {
	word, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	view := NewWordView(*word)
	return &view, nil
}

func (s *WordService) find(ctx context.Context, id uint) (*models.Word, error) {
	word, err := s.repo.FindWord(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewNotFoundError("word not found")
	}
	if err != nil {
		return nil, NewInternalError("failed to load word", err)
	}
	return word, nil
}

func (s *WordService) Random(ctx context.Context) (*WordView, error) {
	words, err := s.repo.RandomWords(ctx, "", 1, nil)
	if err != nil {
		return nil, NewInternalError("failed to pick a word", err)
	}
	if len(words) == 0 {
		return nil, NewNotFoundError("no words found")
	}
	return s.Get(ctx, words[0].ID)
}

// QuizWords returns a random round of words, optionally of one type.
func (s *WordService) QuizWords(ctx context.Context, limit int, wordType models.WordType) ([]WordView, error) {
	if wordType != "" && !wordType.Valid() {
		return nil, NewFieldValidationError("invalid filter", map[string]string{"word_type": "unknown word type"})
	}
	switch {
	case limit <= 0:
		limit = DefaultQuizWords
	case limit > MaxQuizWords:
		limit = MaxQuizWords
	}
	words, err := s.repo.RandomWords(ctx, wordType, limit, nil)
	if err != nil {
		return nil, NewInternalError("failed to load quiz words", err)
	}
	return wordViews(words), nil
}

// QuizQuestion builds a multiple choice question. Distractors share the
// word's first tag when possible and are topped up with random words.
func (s *WordService) QuizQuestion(ctx context.Context, id uint) (*QuizQuestion, error) {
	word, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	exclude := []uint{word.ID}
	var distractors []models.Word
	if len(word.Tags) > 0 && strings.TrimSpace(word.Tags[0]) != "" {
		distractors, err = s.repo.WordsWithTag(ctx, word.Tags[0], quizDistractors, exclude)
		if err != nil {
			return nil, NewInternalError("failed to load distractors", err)
		}
	}
	if missing := quizDistractors - len(distractors); missing > 0 {
		for _, d := range distractors {
			exclude = append(exclude, d.ID)
		}
		extra, err := s.repo.RandomWords(ctx, "", missing, exclude)
		if err != nil {
			return nil, NewInternalError("failed to load distractors", err)
		}
		distractors = append(distractors, extra...)
	}

	options := make([]string, 0, len(distractors)+1)
	options = append(options, word.Text)
	for _, d := range distractors {
		options = append(options, d.Text)
	}
	rand.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })

	return &QuizQuestion{
		WordID:          word.ID,
		Question:        fmt.Sprintf("Which expression means %q?", word.Description),
		WordType:        word.WordType,
		Options:         options,
		AcceptedAnswers: append([]string{word.Text}, word.SubstituteTexts()...),
	}, nil
}

func (s *WordService) Create(ctx context.Context, in WordInput) (*WordView, error) {
	word := &models.Word{}
	if err := s.apply(ctx, word, in); err != nil {
		return nil, err
	}
	err := s.repo.CreateWord(ctx, word)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, duplicateWord()
	}
	if err != nil {
		return nil, NewInternalError("failed to create word", err)
	}
	s.logger.Info("word created", zap.Uint("word_id", word.ID), zap.String("text", word.Text))
	return s.Get(ctx, word.ID)
}

func (s *WordService) Update(ctx context.Context, id uint, in WordInput) (*WordView, error) {
	word, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, word, in); err != nil {
		return nil, err
	}
	err = s.repo.SaveWord(ctx, word)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, duplicateWord()
	}
	if err != nil {
		return nil, NewInternalError("failed to update word", err)
	}
	return s.Get(ctx, word.ID)
}

func (s *WordService) Delete(ctx context.Context, id uint) error {
	err := s.repo.DeleteWord(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return NewNotFoundError("word not found")
	}
	if err != nil {
		return NewInternalError("failed to delete word", err)
	}
	return nil
}

func duplicateWord() *ServiceError {
	conflict := NewConflictError("word already exists", "WORD_EXISTS")
	conflict.Fields = map[string]string{"text": "a word with this text already exists"}
	return conflict
}

func (s *WordService) apply(ctx context.Context, word *models.Word, in WordInput) error {
	in.Text = strings.TrimSpace(in.Text)
	if err := validateStruct(in); err != nil {
		return err
	}

	var subs []*models.Word
	if len(in.SubstituteIDs) > 0 {
		found, err := s.repo.FindWordsByIDs(ctx, in.SubstituteIDs)
		if err != nil {
			return NewInternalError("failed to load substitutes", err)
		}
		for i := range found {
			if found[i].ID == word.ID && word.ID != 0 {
				return NewFieldValidationError("invalid substitutes", map[string]string{"substitute_ids": "a word cannot substitute itself"})
			}
			subs = append(subs, &found[i])
		}
		if len(subs) != len(uniqueIDs(in.SubstituteIDs)) {
			return NewFieldValidationError("invalid substitutes", map[string]string{"substitute_ids": "unknown word id"})
		}
	}

	word.Text = in.Text
	word.Description = in.Description
	word.WordType = in.WordType.OrNone()
	word.Examples = datatypes.JSONSlice[string](nonNil(in.Examples))
	word.Tags = datatypes.JSONSlice[string](nonNil(in.Tags))
	word.DifficultyLevel = in.DifficultyLevel
	if word.DifficultyLevel == 0 {
		word.DifficultyLevel = 1
	}
	word.Substitutes = subs
	word.RefreshSlug()
	return nil
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
