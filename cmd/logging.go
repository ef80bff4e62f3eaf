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
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type plainFormatter struct{}

var levelList = []string{
	"PANIC",
	"FATAL",
	"ERROR",
	"WARN",
	"INFO",
	"DEBUG",
	"TRACE",
}

func (pf *plainFormatter) Format(entry *log.Entry) ([]byte, error) {
	level := levelList[int(entry.Level)]
	fileName := filepath.Base(entry.Caller.File)
	// Example log line:
	// 2022-03-23 12:16:42 INFO main.go:27 Logging initialised.
	msg := fmt.Sprintf("%s %s %s:%d %s\n",
		entry.Time.Format("2006-01-02 15:04:05"), level,
		fileName, entry.Caller.Line, entry.Message)
	return []byte(msg), nil
}

// InitLogging redirects log messages to ${stateDir}/logs/couch-continuum-<cmd>.log.
func InitLogging(stateDir string, cmdName string) {
	logFileName := filepath.Join(stateDir, "logs", fmt.Sprintf("couch-continuum-%s.log", cmdName))

	// logRotator handles the scenario where the "logs" folder or the log
	// file does not exist yet.
	logRotator := &lumberjack.Logger{
		Filename:   logFileName,
		MaxSize:    200, // 200 MB log size before rotation
		MaxBackups: 10,  // Allow upto 10 logs at once before deleting oldest logs.
	}
	log.SetOutput(logRotator)

	log.SetReportCaller(true)
	log.SetFormatter(&plainFormatter{})
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("Logging initialised.")
	log.Infof("Args: %v", redactedArgs())
}

// redactedArgs hides credentials embedded in cluster/database URLs.
func redactedArgs() []string {
	args := make([]string, len(os.Args))
	for i, arg := range os.Args {
		args[i] = redactCredentials(arg)
	}
	return args
}
