package model

// Book はライブラリの蔵書を表す。IDはストアが採番する。
type Book struct {
	ID     int64
	Title  string
	Author string
	Blurb  string
}

// NewBook は新規登録する蔵書の入力値を表す。
type NewBook struct {
	Title  string
	Author string
	Blurb  string
}
