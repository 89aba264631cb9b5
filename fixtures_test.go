package jsonapi

import (
	"time"
)

type person struct {
	ID         string  `jsonapi:"id"`
	Type       string  `jsonapi:"type"`
	Name       string  `jsonapi:"name,omitempty"`
	BestFriend *person `jsonapi:"bestFriend,omitempty"`
}

func (p *person) DisplayName() string { return p.Name }

type named interface {
	DisplayName() string
}

type comment struct {
	ID     string  `jsonapi:"id"`
	Type   string  `jsonapi:"type"`
	Body   string  `jsonapi:"body"`
	Author *person `jsonapi:"author"`
}

type article struct {
	ID        string
	Title     string
	Tags      []string
	Published time.Time
	Rating    float64
	Views     uint32
	Author    *person
	Comments  []*comment
	Links     Links
	Meta      Meta
}

type lover struct {
	ID    string                     `jsonapi:"id"`
	Type  string                     `jsonapi:"type"`
	Name  string                     `jsonapi:"name"`
	Loves ResourceIdentifier[*lover] `jsonapi:"loves"`
}

type task struct {
	ID      string                 `jsonapi:"id"`
	Owner   any                    `jsonapi:"owner"`
	Extra   map[string]any         `jsonapi:"extra,omitempty"`
	Helpers []any                  `jsonapi:"helpers,omitempty"`
	Watch   *Relationship[*person] `jsonapi:"watch,omitempty"`
}

type assignment struct {
	ID       string `jsonapi:"id"`
	Assignee named  `jsonapi:"assignee"`
}

type robot struct {
	ID    string `jsonapi:"id"`
	Model string `jsonapi:"model"`
}

type review struct {
	ID     string  `jsonapi:"id"`
	Author *person `jsonapi:"author"`
	Editor *robot  `jsonapi:"editor"`
}

type post struct {
	ID     string `jsonapi:"id"`
	Author person `jsonapi:"author"`
}

type profile struct {
	ID       string  `jsonapi:"id"`
	Nickname *string `jsonapi:"nickname"`
}

type node struct {
	ID   string `jsonapi:"id"`
	Type string `jsonapi:"type"`
	Name string `jsonapi:"name,omitempty"`
	Next *node  `jsonapi:"next,omitempty"`
}

type roster struct {
	ID      string            `jsonapi:"id"`
	Members map[string]person `jsonapi:"members"`
}

type base struct {
	ID      string `jsonapi:"id"`
	Created string `jsonapi:"created"`
}

type widget struct {
	base
	Label  string `jsonapi:"label"`
	Colour string `json:"colour,omitempty"`
	Secret string `json:"-"`
	Hidden string `jsonapi:"-"`
	note   string
}

func newArticle() *article {
	dan := &person{ID: "9", Type: "people", Name: "Dan"}
	return &article{
		ID:        "1",
		Title:     "JSON:API paints my bikeshed!",
		Tags:      []string{"api", "json"},
		Published: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Rating:    4.5,
		Views:     1200,
		Author:    dan,
		Comments: []*comment{
			{ID: "5", Type: "comments", Body: "First!", Author: &person{ID: "2", Type: "people", Name: "Ann"}},
			{ID: "12", Type: "comments", Body: "I like XML better", Author: dan},
		},
		Links: Links{"self": {Href: "http://example.com/articles/1"}},
		Meta:  Meta{"words": float64(1200)},
	}
}
