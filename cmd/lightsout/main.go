// Lightsout starts and stops tagged AWS resources on a work-hours schedule.
package main

func main() {
	Execute()
}
