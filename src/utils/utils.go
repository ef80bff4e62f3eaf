/*
Copyright (c) YugabyteDB, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package utils

import (
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/tebeka/atexit"
)

// DoNotPrompt makes AskPrompt answer yes without asking (--yes flag).
var DoNotPrompt bool

// exitHook is what ErrExit calls to terminate. Default = atexit.Exit;
// tests override it.
var exitHook = atexit.Exit

// SetExitHook lets callers replace the termination behaviour. Pass nil to
// restore the default.
func SetExitHook(h func(code int)) {
	if h == nil {
		exitHook = atexit.Exit
	} else {
		exitHook = h
	}
}

// ErrExit prints the formatted error and then terminates via exitHook.
func ErrExit(format string, args ...interface{}) {
	format = strings.Replace(format, "%w", "%s", -1)
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	log.Errorf(format+"\n", args...)
	exitHook(1)
}

func PrintAndLog(formatString string, args ...interface{}) {
	log.Infof(formatString, args...)
	if !strings.HasSuffix(formatString, "\n") {
		formatString = formatString + "\n"
	}
	fmt.Printf(formatString, args...)
}

// AskPrompt asks a yes/no question on the console.
func AskPrompt(question string) bool {
	if DoNotPrompt {
		return true
	}
	var input string
	fmt.Printf("%s? [Y/N]: ", question)
	_, err := fmt.Scan(&input)
	if err != nil {
		return false
	}
	input = strings.ToUpper(strings.TrimSpace(input))
	return input == "Y" || input == "YES"
}

func FileOrFolderExists(path string) bool {
	_, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false
		}
		panic(err)
	}
	return true
}
