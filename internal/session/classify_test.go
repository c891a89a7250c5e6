package session

import "testing"

func TestClassify_Prompt(t *testing.T) {
	cases := []string{
		"total 24\nuser@host:~$ ",
		"user@host:~$",
		"root@box:/etc# ",
		"fish ~> ",
		"zsh % ",
	}
	for _, snap := range cases {
		if got := Classify(snap); got != PromptDetected {
			t.Errorf("Classify(%q) = %v, want PromptDetected", snap, got)
		}
	}
}

func TestClassify_AwaitingInput(t *testing.T) {
	cases := []string{
		"Connecting...\nPassword: ",
		"password:",
		"Enter passphrase for key '/home/u/.ssh/id_ed25519': passphrase:",
		"Do you want to continue? [y/n]",
		"Overwrite? [Y/N]",
	}
	for _, snap := range cases {
		if got := Classify(snap); got != AwaitingInput {
			t.Errorf("Classify(%q) = %v, want AwaitingInput", snap, got)
		}
	}
}

func TestClassify_Unclassified(t *testing.T) {
	cases := []string{
		"compiling module foo...",
		"",
		"\n\n\n",
		"  downloading layer 7 of 12  ",
	}
	for _, snap := range cases {
		if got := Classify(snap); got != Unclassified {
			t.Errorf("Classify(%q) = %v, want Unclassified", snap, got)
		}
	}
}

func TestClassify_LastNonBlankLine(t *testing.T) {
	// Trailing blank lines are skipped, so the prompt still counts.
	snap := "user@host:~$ \n\n  \n"
	if got := Classify(snap); got != PromptDetected {
		t.Errorf("Classify = %v, want PromptDetected", got)
	}
}

func TestCompletionHint(t *testing.T) {
	if PromptDetected.Hint() != PromptHint {
		t.Error("PromptDetected hint mismatch")
	}
	if AwaitingInput.Hint() != AwaitingInputHint {
		t.Error("AwaitingInput hint mismatch")
	}
	if Unclassified.Hint() != "" {
		t.Error("Unclassified should have no hint")
	}
}
