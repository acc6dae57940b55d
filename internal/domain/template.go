package domain

const defaultCode = `package main

import "fmt"

func main() {
	fmt.Println("hello, snippets")
}`

// DefaultDocument returns the fixed template every new snippet starts from.
// Each call returns a fresh value.
func DefaultDocument() Document {
	return Document{
		Canvas: Canvas{
			Width:   960,
			Height:  540,
			Padding: 32,
			Background: Background{
				Fill: &Fill{
					Type:  FillLinearGradient,
					Angle: 135,
					Stops: []GradientStop{
						{Color: "#4f46e5", Offset: 0},
						{Color: "#db2777", Offset: 1},
					},
				},
			},
		},
		Elements: []Element{
			{
				ID:   "code-editor",
				Name: "Code",
				Transform: Transform{
					Width:     640,
					Height:    300,
					MinWidth:  160,
					MinHeight: 80,
					Scale:     1,
					Position:  Position{X: 160, Y: 140},
				},
				Data: &CodeEditorData{
					Code:            defaultCode,
					Language:        "go",
					FontSize:        16,
					LineHeight:      1.5,
					ShowLineNumbers: true,
					Theme:           "dark",
					Padding:         24,
				},
			},
			{
				ID:   "title",
				Name: "Title",
				Transform: Transform{
					Width:     640,
					Height:    60,
					MinWidth:  40,
					MinHeight: 20,
					Scale:     1,
					Position:  Position{X: 160, Y: 60},
				},
				Data: &TextData{
					Value:      "Untitled snippet",
					Align:      TextAlignCenter,
					Color:      "#ffffff",
					FontFamily: "sans-serif",
					FontSize:   32,
					FontWeight: 700,
				},
			},
		},
	}
}
