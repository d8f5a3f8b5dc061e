// Package main hosts the coursetrack CLI.
//
// Commands scan course folders into tracked courses, render a course's chapters
// and progress, record playback positions, manage repository backups, and watch
// course roots for filesystem changes. Shared setup (configuration, logging,
// repository backend) lives in commandContext so each command file stays focused
// on flags and output.
package main
