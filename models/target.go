package models

import "fmt"

type TargetKind string

const (
	TargetCar     TargetKind = "car"
	TargetArticle TargetKind = "article"
)

// CommentTarget is the thing a comment is attached to: a car or an article.
type CommentTarget struct {
	Kind TargetKind `json:"kind"`
	ID   uint       `json:"id"`
}

func CarTarget(id uint) CommentTarget     { return CommentTarget{Kind: TargetCar, ID: id} }
func ArticleTarget(id uint) CommentTarget { return CommentTarget{Kind: TargetArticle, ID: id} }

func (t CommentTarget) String() string { return fmt.Sprintf("%s:%d", t.Kind, t.ID) }

// Column is the comments column that references the target.
func (t CommentTarget) Column() string {
	if t.Kind == TargetArticle {
		return "article_id"
	}
	return "car_id"
}

// Target reports which entity the comment belongs to. ok is false when the
// row references neither or both.
func (c *Comment) Target() (t CommentTarget, ok bool) {
	switch {
	case c.CarID != nil && c.ArticleID == nil:
		return CarTarget(*c.CarID), true
	case c.ArticleID != nil && c.CarID == nil:
		return ArticleTarget(*c.ArticleID), true
	}
	return CommentTarget{}, false
}

// SetTarget points the comment at t, clearing the other reference.
func (c *Comment) SetTarget(t CommentTarget) {
	id := t.ID
	c.CarID, c.ArticleID = nil, nil
	switch t.Kind {
	case TargetCar:
		c.CarID = &id
	case TargetArticle:
		c.ArticleID = &id
	}
}
