package utils

import "github.com/sirupsen/logrus"

// Must stops the process on a startup error.
func Must(err error) {
	if err != nil {
		logrus.Fatal(err)
	}
}
