package log

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/thesyncim/avplay/internal/config"
)

func TestSetup(t *testing.T) {
	Convey("Log Setup", t, func() {
		viper.Reset()
		defer viper.Reset()
		defer logrus.SetOutput(logrus.StandardLogger().Out)

		Convey("Should parse the level", func() {
			viper.Set(config.LogsLevel, "debug")
			closer, err := Setup(afero.NewMemMapFs())
			So(err, ShouldBeNil)
			So(closer.Close(), ShouldBeNil)
			So(logrus.GetLevel(), ShouldEqual, logrus.DebugLevel)
		})

		Convey("Should fall back to info on a bad level", func() {
			viper.Set(config.LogsLevel, "loud")
			_, err := Setup(afero.NewMemMapFs())
			So(err, ShouldBeNil)
			So(logrus.GetLevel(), ShouldEqual, logrus.InfoLevel)
		})

		Convey("Should write to a dated file", func() {
			fs := afero.NewMemMapFs()
			viper.Set(config.LogsWrite, true)
			viper.Set(config.LogsDir, "/logs")
			viper.Set(config.LogsLevel, "info")

			closer, err := Setup(fs)
			So(err, ShouldBeNil)
			logrus.WithField("component", "test").Info("hello")
			So(closer.Close(), ShouldBeNil)

			path := filepath.Join("/logs", time.Now().Format("2006-01-02")+".log")
			data, err := afero.ReadFile(fs, path)
			So(err, ShouldBeNil)
			So(string(data), ShouldContainSubstring, "hello")
			So(string(data), ShouldContainSubstring, "component=test")
		})
	})
}
